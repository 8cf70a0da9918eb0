package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM notify_state WHERE namespace=$1 AND key=$2`
	var v string
	err := s.pool.QueryRow(ctx, q, s.ns, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get state: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO notify_state (namespace, key, value, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, q, s.ns, key, value); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notify_state WHERE namespace=$1 AND key=$2`, s.ns, key); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM notify_state WHERE namespace=$1`, s.ns)
	if err != nil {
		return nil, fmt.Errorf("list state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) DeleteUnchanged(ctx context.Context, expected map[string]string) (int, error) {
	if len(expected) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `DELETE FROM notify_state WHERE namespace=$1 AND key=$2 AND value=$3`
	n := 0
	for k, want := range expected {
		tag, err := tx.Exec(ctx, q, s.ns, k, want)
		if err != nil {
			return 0, fmt.Errorf("delete state %s: %w", k, err)
		}
		n += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Lock takes a session-level advisory lock on a dedicated connection. The
// connection goes back to the pool when the lock is released.
func (s *Store) Lock(ctx context.Context, key string) (repo.Unlock, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	lockKey := s.ns + "/" + key
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, lockKey); err != nil {
		conn.Release()
		if ctx.Err() != nil {
			return nil, repo.ErrLockTimeout
		}
		return nil, fmt.Errorf("advisory lock: %w", err)
	}
	return func() error {
		defer conn.Release()
		_, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, lockKey)
		if err != nil {
			s.log.Warn("advisory_unlock_error", zap.String("key", lockKey), zap.Error(err))
		}
		return err
	}, nil
}
