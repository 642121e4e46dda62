package syncer

import (
	"context"
	"regexp"

	"backend-cragmap/internal/auth"
	"backend-cragmap/internal/cache"
	"backend-cragmap/internal/feed"
	"backend-cragmap/internal/remote"
)

type Favorite struct {
	ID         string      `json:"id"`
	SiteName   string      `json:"siteName"`
	RouteName  string      `json:"routeName"`
	Difficulty string      `json:"difficulty,omitempty"`
	SiteURL    string      `json:"siteUrl,omitempty"`
	DateAdded  remote.Time `json:"dateAdded"`
	UserID     string      `json:"userId,omitempty"`
}

func (f Favorite) RecordID() string { return f.ID }

var whitespace = regexp.MustCompile(`\s+`)

// FavoriteID is the one id a (site, route) pair can be favorited under.
func FavoriteID(siteName, routeName string) string {
	return whitespace.ReplaceAllString(siteName+"_"+routeName, "_")
}

// Favorites is the favorite-routes collection.
type Favorites struct {
	*Engine[Favorite]
}

func NewFavorites(local cache.Store, store remote.DocumentStore, identity auth.Provider, opts ...Option) *Favorites {
	col := Collection[Favorite]{
		Name:     "favorites",
		CacheKey: cache.KeyFavorites,
		Remote:   remote.CollectionFavorites,
		SetID:    func(f *Favorite, id string) { f.ID = id },
		Event: func(f Favorite) feed.Event {
			return feed.Event{Kind: feed.KindFavorite, SiteName: f.SiteName, RouteName: f.RouteName, Difficulty: f.Difficulty}
		},
	}
	return &Favorites{Engine: NewEngine(col, local, store, identity, opts...)}
}

// Add favorites a route. Favoriting the same pair again returns the existing
// favorite without writing anything.
func (f *Favorites) Add(ctx context.Context, siteName, routeName, difficulty, siteURL string) (Favorite, bool, error) {
	if siteName == "" || routeName == "" {
		return Favorite{}, false, wrapInvalid("site and route names are required")
	}
	fav := Favorite{
		ID:         FavoriteID(siteName, routeName),
		SiteName:   siteName,
		RouteName:  routeName,
		Difficulty: difficulty,
		SiteURL:    siteURL,
		DateAdded:  remote.NewTime(f.now()),
	}
	stored, added := f.Engine.Add(ctx, fav)
	return stored, added, nil
}

// RemoveRoute unfavorites a (site, route) pair.
func (f *Favorites) RemoveRoute(ctx context.Context, siteName, routeName string) bool {
	return f.Remove(ctx, FavoriteID(siteName, routeName))
}

func (f *Favorites) IsFavorite(siteName, routeName string) bool {
	id := FavoriteID(siteName, routeName)
	for _, fav := range f.Records() {
		if fav.ID == id {
			return true
		}
	}
	return false
}

// Toggle flips the favorite state of a route and reports the new state.
func (f *Favorites) Toggle(ctx context.Context, siteName, routeName, difficulty, siteURL string) (bool, error) {
	if f.IsFavorite(siteName, routeName) {
		f.RemoveRoute(ctx, siteName, routeName)
		return false, nil
	}
	if _, _, err := f.Add(ctx, siteName, routeName, difficulty, siteURL); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Favorites) BySite(siteName string) []Favorite {
	var out []Favorite
	for _, fav := range f.Records() {
		if fav.SiteName == siteName {
			out = append(out, fav)
		}
	}
	return out
}
