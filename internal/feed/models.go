package feed

import "backend-cragmap/internal/remote"

type Kind string

const (
	KindFavorite Kind = "favorite"
	KindLog      Kind = "log"
)

// Activity is one public feed entry. ID is assigned by the document store
// and is never part of the stored fields.
type Activity struct {
	ID         string      `json:"id,omitempty"`
	UserID     string      `json:"userId"`
	UserLabel  string      `json:"userLabel"`
	Kind       Kind        `json:"type"`
	SiteName   string      `json:"siteName"`
	RouteName  string      `json:"routeName"`
	Difficulty string      `json:"difficulty,omitempty"`
	Notes      string      `json:"notes,omitempty"`
	Timestamp  remote.Time `json:"timestamp"`
}

// Event is what a favorite or log mutation reports to the feed.
type Event struct {
	Kind       Kind
	SiteName   string
	RouteName  string
	Difficulty string
	Notes      string
}
