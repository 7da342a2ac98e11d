package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory keeps every collection in process memory. Used by tests and by the
// server in mock mode.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]json.RawMessage),
	}
}

func (m *Memory) Get(_ context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *Memory) Query(_ context.Context, collection string, filters []Filter, limit int) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []json.RawMessage
	for _, doc := range m.collections[collection] {
		if !matches(doc, filters) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) QueryIn(_ context.Context, collection, field string, values []string, filters ...Filter) ([]json.RawMessage, error) {
	if len(values) > MaxInValues {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyValues, len(values), MaxInValues)
	}
	wanted := make(map[string]struct{}, len(values))
	for _, v := range values {
		wanted[v] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []json.RawMessage
	for _, doc := range m.collections[collection] {
		fields := decodeFields(doc)
		v, ok := fields[field].(string)
		if !ok {
			continue
		}
		if _, ok := wanted[v]; !ok {
			continue
		}
		if !matchesFields(fields, filters) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]json.RawMessage)
	}
	m.collections[collection][id] = raw
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
	}
	m.collections[collection][id] = merged
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

// BatchDelete removes the given ids under a single lock acquisition, so no
// reader ever observes a partially deleted batch.
func (m *Memory) BatchDelete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.collections[collection], id)
	}
	return nil
}

func matches(doc json.RawMessage, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	return matchesFields(decodeFields(doc), filters)
}

func matchesFields(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field].(string)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

func decodeFields(doc json.RawMessage) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil
	}
	return fields
}
