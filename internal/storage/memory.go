package storage

import (
	"context"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process. Used for local runs and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

func (m *MemoryStorage) Put(ctx context.Context, key string, data []byte, contentType string) (FileRef, error) {
	if err := ctx.Err(); err != nil {
		return FileRef{}, err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf, contentType: contentType}
	m.mu.Unlock()

	return FileRef{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		Driver:      DriverMemory,
	}, nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

func (m *MemoryStorage) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + key, nil
}

func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}

// Len reports how many objects are stored.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
