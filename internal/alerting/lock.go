package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/checkmk-notify/internal/repo"
	"go.uber.org/zap"
)

const DefaultLockTimeout = 30 * time.Second

// acquire takes the store lock for key, waiting at most timeout. The
// returned release logs instead of failing.
func acquire(ctx context.Context, store repo.Store, key string, timeout time.Duration, log *zap.Logger) (func(), error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	unlock, err := store.Lock(lctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return func() {
		if err := unlock(); err != nil {
			log.Warn("state unlock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
