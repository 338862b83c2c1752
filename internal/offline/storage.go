package offline

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Entry is a stored response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Storage holds cached responses in named partitions.
type Storage interface {
	Get(ctx context.Context, partition, key string) (Entry, bool, error)
	Put(ctx context.Context, partition, key string, e Entry) error
	Partitions(ctx context.Context) ([]string, error)
	DropPartition(ctx context.Context, partition string) error
}

// MemoryStorage is a Storage kept in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	parts map[string]map[string]Entry
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{parts: make(map[string]map[string]Entry)}
}

func (m *MemoryStorage) Get(_ context.Context, partition, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.parts[partition][key]
	return e, ok, nil
}

func (m *MemoryStorage) Put(_ context.Context, partition, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[partition]
	if !ok {
		p = make(map[string]Entry)
		m.parts[partition] = p
	}
	e.Header = e.Header.Clone()
	p[key] = e
	return nil
}

func (m *MemoryStorage) Partitions(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.parts))
	for name := range m.parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) DropPartition(_ context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parts, partition)
	return nil
}
