// Package remote is the multi-device document store the sync engine mirrors
// into. It is never the source of truth for a running session.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	CollectionFavorites  = "favorites"
	CollectionLogs       = "climbingLogs"
	CollectionActivities = "activities"
)

var ErrNotFound = errors.New("remote: document not found")

// Document is one stored record. Data holds the JSON object fields.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Query is an optional equality filter plus optional ordering and limit.
type Query struct {
	Field      string
	Equals     any
	OrderBy    string
	Descending bool
	Limit      int
}

type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, data map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Add stores data under a store-assigned id and returns it.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
}

// Encode turns a JSON-tagged struct into document fields. Fields tagged
// omitempty that are unset are dropped rather than sent as nulls.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	for k, val := range fields {
		if val == nil {
			delete(fields, k)
		}
	}
	return fields, nil
}

// Decode fills v from the document fields.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}
