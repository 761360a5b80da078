package docstore

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps documents in process. Every call copies documents in and
// out so callers never share maps with the store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Document)}
}

func (m *Memory) Create(_ context.Context, collection, id string, doc Document) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return ErrExists
	}
	coll[id] = doc.Clone()
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, patch Document) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	m.collections[collection][id] = merge(existing, patch)
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, bool, error) {
	if err := validate(collection, id); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, coll[id].Clone())
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
