package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory. Used in tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	cols map[string]map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cols: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string, dest any) error {
	m.mu.RLock()
	data, ok := m.cols[collection][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, data)
	return nil
}

func (m *MemoryStore) put(collection, id string, data []byte) {
	col, ok := m.cols[collection]
	if !ok {
		col = make(map[string][]byte)
		m.cols[collection] = col
	}
	col[id] = data
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged, err := mergeFields(data, fields)
	if err != nil {
		return err
	}
	m.put(collection, id, merged)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cols[collection], id)
	return nil
}

func (m *MemoryStore) BulkSet(_ context.Context, collection string, docs map[string]any) error {
	encoded := make(map[string][]byte, len(docs))
	for id, v := range docs {
		data, err := encode(v)
		if err != nil {
			return err
		}
		encoded[id] = data
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, data := range encoded {
		m.put(collection, id, data)
	}
	return nil
}

func (m *MemoryStore) DeleteCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cols, collection)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	docs := make([]Document, 0, len(m.cols[collection]))
	for id, data := range m.cols[collection] {
		docs = append(docs, Document{ID: id, Data: data})
	}
	m.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return apply(docs, q)
}

func (m *MemoryStore) Close() error { return nil }
