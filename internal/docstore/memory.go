package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewInMemoryStore() Store {
	return &memoryStore{docs: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, path string, dst any) (bool, error) {
	if err := checkPath(path); err != nil {
		return false, err
	}
	m.mu.RLock()
	raw, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, decode(raw, dst)
}

func (m *memoryStore) Set(_ context.Context, path string, v any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[path] = buf
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Update(_ context.Context, path string, fn UpdateFunc) error {
	if err := checkPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur json.RawMessage
	if raw, ok := m.docs[path]; ok {
		cur = append(json.RawMessage(nil), raw...)
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}
	m.docs[path] = next
	return nil
}

func (m *memoryStore) Delete(_ context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.docs, path)
	m.mu.Unlock()
	return nil
}
