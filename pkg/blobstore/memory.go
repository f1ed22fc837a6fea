package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a map-backed Store for tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Put(_ context.Context, key string, obj Object) error {
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: obj.ContentType, Data: data}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (Object, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return Object{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	return Object{ContentType: obj.ContentType, Data: data}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) Close() error { return nil }
