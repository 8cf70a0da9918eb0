// Package bolt implements repo.Store on an embedded bbolt database.
//
// bbolt takes an exclusive flock on the database file for as long as it is
// open, so an invocation holding the Store is the only writer across all
// handler processes. Lock therefore only has to serialise goroutines.
package bolt

import (
	"context"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db     *bolt.DB
	bucket []byte

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// Open opens (creating if needed) the database at path and targets the
// bucket named by namespace. It waits up to timeout for other processes to
// release the file.
func Open(path, namespace string, timeout time.Duration) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	s := &Store{db: db, bucket: []byte(namespace), locks: make(map[string]chan struct{})}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %q: %w", namespace, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		// v is only valid inside the transaction; string() copies it.
		value, ok = string(v), true
		return nil
	})
	return value, ok, err
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), []byte(value))
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *Store) List(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

func (s *Store) DeleteUnchanged(ctx context.Context, expected map[string]string) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for k, want := range expected {
			if v := b.Get([]byte(k)); v == nil || string(v) != want {
				continue
			}
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Lock(ctx context.Context, key string) (repo.Unlock, error) {
	s.mu.Lock()
	sem, ok := s.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[key] = sem
	}
	s.mu.Unlock()

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
