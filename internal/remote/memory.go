package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is the in-process document store used offline and in tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]map[string]map[string]any{}}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneFields(data)}, nil
}

func (m *Memory) Put(_ context.Context, collection, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]map[string]any{}
	}
	m.collections[collection][id] = cloneFields(data)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	return id, m.Put(ctx, collection, id, data)
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	m.mu.RLock()
	var docs []Document
	for id, data := range m.collections[collection] {
		if q.Field != "" && fmt.Sprint(data[q.Field]) != fmt.Sprint(q.Equals) {
			continue
		}
		docs = append(docs, Document{ID: id, Data: cloneFields(data)})
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			if c := compareValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy]); c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// Len reports the number of documents in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// compareValues orders numbers numerically and everything else by its text.
func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cloneFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
