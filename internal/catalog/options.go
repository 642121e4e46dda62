package catalog

import (
	"fmt"
	"sort"
)

var gradeRank = map[string]int{
	"VD": 0, "S": 1, "HS": 2, "VS": 3, "HVS": 4,
	"E1": 5, "E2": 6, "E3": 7, "E4": 8, "E5": 9, "E6": 10,
}

type ClusterOption struct {
	ID    *int   `json:"id"`
	Label string `json:"label"`
}

type Options struct {
	Regions      []string        `json:"region_options"`
	Categories   []string        `json:"category_options"`
	Difficulties []string        `json:"difficulty_options"`
	Clusters     []ClusterOption `json:"cluster_options"`
}

func BuildOptions(sites []Site) Options {
	return Options{
		Regions:      RegionOptions(sites),
		Categories:   CategoryOptions(sites),
		Difficulties: DifficultyOptions(sites),
		Clusters:     ClusterOptions(sites),
	}
}

func RegionOptions(sites []Site) []string {
	seen := map[string]struct{}{}
	var regions []string
	for _, s := range sites {
		if s.Region == "" {
			continue
		}
		if _, ok := seen[s.Region]; !ok {
			seen[s.Region] = struct{}{}
			regions = append(regions, s.Region)
		}
	}
	sort.Strings(regions)
	return append([]string{All}, regions...)
}

func CategoryOptions(sites []Site) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range sites {
		for _, c := range s.Categories {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// DifficultyOptions orders grades VD < S < HS < VS < HVS < E1..E6; grades
// outside that table follow in lexical order.
func DifficultyOptions(sites []Site) []string {
	seen := map[string]struct{}{}
	var grades []string
	for _, s := range sites {
		for _, r := range s.Routes {
			if r.Difficulty == "" {
				continue
			}
			if _, ok := seen[r.Difficulty]; !ok {
				seen[r.Difficulty] = struct{}{}
				grades = append(grades, r.Difficulty)
			}
		}
	}
	sort.Slice(grades, func(i, j int) bool {
		ri, iok := gradeRank[grades[i]]
		rj, jok := gradeRank[grades[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return grades[i] < grades[j]
		}
	})
	return append([]string{All}, grades...)
}

// ClusterOptions lists style clusters by id behind an "All Style" entry.
func ClusterOptions(sites []Site) []ClusterOption {
	labels := map[int]string{}
	var ids []int
	for _, s := range sites {
		if s.ClusterID == nil {
			continue
		}
		id := *s.ClusterID
		if _, ok := labels[id]; ok {
			continue
		}
		label := s.ClusterLabel
		if label == "" {
			label = fmt.Sprintf("Cluster %d", id)
		}
		labels[id] = label
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := []ClusterOption{{ID: nil, Label: "All Style"}}
	for _, id := range ids {
		id := id
		out = append(out, ClusterOption{ID: &id, Label: labels[id]})
	}
	return out
}
