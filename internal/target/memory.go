package target

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memoryObject struct {
	data []byte
	opts PutOptions
	etag string
}

// MemoryTarget is an in-memory Target. It backs the "memory" target type
// and the tests.
type MemoryTarget struct {
	name    string
	mu      sync.RWMutex
	objects map[string]*memoryObject
	version int64
}

// NewMemoryTarget creates an empty MemoryTarget.
func NewMemoryTarget(name string) *MemoryTarget {
	return &MemoryTarget{
		name:    name,
		objects: make(map[string]*memoryObject),
	}
}

func (m *MemoryTarget) Name() string { return m.name }

func (m *MemoryTarget) Put(_ context.Context, key string, data []byte, opts PutOptions) error {
	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	opts.Metadata = meta

	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	m.objects[key] = &memoryObject{
		data: append([]byte(nil), data...),
		opts: opts,
		etag: fmt.Sprintf(`"%d"`, m.version),
	}
	return nil
}

func (m *MemoryTarget) Get(_ context.Context, key string) ([]byte, ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ObjectMeta{}, ErrNotFound
	}
	return append([]byte(nil), obj.data...), obj.meta(), nil
}

func (m *MemoryTarget) Head(_ context.Context, key string) (ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return ObjectMeta{}, ErrNotFound
	}
	return obj.meta(), nil
}

func (m *MemoryTarget) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

func (m *MemoryTarget) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			results = append(results, ObjectInfo{Key: k, Size: int64(len(obj.data))})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return results, nil
}

// Options returns the PutOptions the object at key was last written with.
func (m *MemoryTarget) Options(key string) (PutOptions, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return PutOptions{}, false
	}
	return obj.opts, true
}

// Len returns the number of stored objects.
func (m *MemoryTarget) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (o *memoryObject) meta() ObjectMeta {
	return ObjectMeta{ETag: o.etag, Size: int64(len(o.data))}
}
