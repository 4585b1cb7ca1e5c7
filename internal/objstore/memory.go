package objstore

import (
	"context"
	"sync"

	"github.com/olympiadqr/backend/internal/domain"
)

// Memory is the test backend.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Put(_ context.Context, bucket, key string, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}
	m.objects[bucket+":"+key] = cp
	return nil
}

func (m *Memory) Get(_ context.Context, bucket, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket+":"+key]
	if !ok {
		return Object{}, domain.E(domain.KindNotFound, "object %s/%s not found", bucket, key)
	}
	return Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, nil
}

func (m *Memory) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+":"+key)
	return nil
}

// Len reports the number of stored objects, for assertions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ Store = (*Memory)(nil)
