// Package file implements repo.Store on a single flat file.
//
// Readers take a shared flock on "<path>.lock", writers an exclusive one,
// and every write replaces the file atomically, so concurrent handler
// processes never lose each other's updates. Store.Lock uses one lock
// file per stripe under "<path>.locks/".
package file

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	path  string
	codec Codec
}

func New(path string, codec Codec) *Store {
	return &Store{path: path, codec: codec}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		v  string
		ok bool
	)
	err := s.view(ctx, func(m map[string]string) {
		v, ok = m[key]
	})
	return v, ok, err
}

func (s *Store) List(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := s.view(ctx, func(m map[string]string) { out = m })
	return out, err
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.update(ctx, func(m map[string]string) bool {
		if cur, ok := m[key]; ok && cur == value {
			return false
		}
		m[key] = value
		return true
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.update(ctx, func(m map[string]string) bool {
		if _, ok := m[key]; !ok {
			return false
		}
		delete(m, key)
		return true
	})
}

func (s *Store) DeleteUnchanged(ctx context.Context, expected map[string]string) (int, error) {
	n := 0
	err := s.update(ctx, func(m map[string]string) bool {
		for k, want := range expected {
			if cur, ok := m[k]; ok && cur == want {
				delete(m, k)
				n++
			}
		}
		return n > 0
	})
	return n, err
}

func (s *Store) Lock(ctx context.Context, key string) (repo.Unlock, error) {
	dir := s.path + ".locks"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := flockFile(ctx, filepath.Join(dir, lockStripe(key)), unix.LOCK_EX)
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", key, err)
	}
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = releaseFile(f) })
		return err
	}, nil
}

// Keys share lockStripes lock files, named by the first byte of their
// SHA-1, so the lock directory never holds more than that many files.
// Keys in the same stripe serialise with each other.
const lockStripes = 256

func lockStripe(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:1])
}

func (s *Store) view(ctx context.Context, fn func(map[string]string)) error {
	lf, err := flockFile(ctx, s.path+".lock", unix.LOCK_SH)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer releaseFile(lf)

	m, err := s.read()
	if err != nil {
		return err
	}
	fn(m)
	return nil
}

// update runs fn on the current contents under the exclusive file lock and
// writes the result back when fn reports a change.
func (s *Store) update(ctx context.Context, fn func(map[string]string) bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	lf, err := flockFile(ctx, s.path+".lock", unix.LOCK_EX)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer releaseFile(lf)

	m, err := s.read()
	if err != nil {
		return err
	}
	if !fn(m) {
		return nil
	}
	return s.write(m)
}

func (s *Store) read() (map[string]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()
	m, err := s.codec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return m, nil
}

func (s *Store) write(m map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := s.codec.Encode(tmp, m); err != nil {
		tmp.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
