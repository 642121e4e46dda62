package catalog

import (
	"strings"
	"unicode"
)

// SiteID is a pure function of (region, area, name). Missing parts become
// "Unknown"; every non-alphanumeric rune becomes an underscore.
func SiteID(region, area, name string) string {
	if region == "" {
		region = "Unknown"
	}
	if area == "" {
		area = "Unknown"
	}
	raw := region + "_" + area + "_" + name
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, raw)
}

var categoryVocabulary = []struct {
	needle string
	tag    string
}{
	{"sea", "Sea Cliff"},
	{"quarry", "Quarry"},
	{"mountain", "Mountain"},
	{"inland", "Inland"},
	{"trad", "Trad"},
	{"sport", "Sport"},
	{"boulder", "Bouldering"},
}

var defaultCategories = []string{"Inland", "Trad"}

// Categories derives tags from free-text climbing type descriptions.
func Categories(texts ...string) []string {
	joined := strings.ToLower(strings.Join(texts, " "))
	var tags []string
	for _, v := range categoryVocabulary {
		if strings.Contains(joined, v.needle) {
			tags = append(tags, v.tag)
		}
	}
	if len(tags) == 0 {
		return append([]string(nil), defaultCategories...)
	}
	return tags
}
