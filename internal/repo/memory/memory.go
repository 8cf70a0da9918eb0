package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps state in process memory. Used by tests and as a stand-in
// wherever nothing needs to outlive the process.
type Store struct {
	mu    sync.RWMutex
	data  map[string]string
	locks map[string]chan struct{}
}

func New() *Store {
	return &Store{
		data:  make(map[string]string),
		locks: make(map[string]chan struct{}),
	}
}

func (m *Store) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Store) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Store) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Store) List(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *Store) DeleteUnchanged(ctx context.Context, expected map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, want := range expected {
		if cur, ok := m.data[k]; ok && cur == want {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *Store) Lock(ctx context.Context, key string) (repo.Unlock, error) {
	m.mu.Lock()
	sem, ok := m.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[key] = sem
	}
	m.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, repo.ErrLockTimeout
	}
	var once sync.Once
	return func() error {
		once.Do(func() { <-sem })
		return nil
	}, nil
}
