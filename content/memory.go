package content

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and single-process development.
type Memory struct {
	mu      sync.RWMutex
	records map[Kind]map[string]*Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{records: make(map[Kind]map[string]*Record)}
	for _, kind := range Kinds {
		m.records[kind] = make(map[string]*Record)
	}
	return m
}

func (m *Memory) Put(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Kind][rec.ID] = rec
	return nil
}

func (m *Memory) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(ctx context.Context, kind Kind) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*Record, 0, len(m.records[kind]))
	for _, rec := range m.records[kind] {
		records = append(records, rec)
	}
	return records, nil
}
