package file

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

const lockPoll = 25 * time.Millisecond

// flockFile opens (creating if needed) path and takes an flock on it,
// polling until it is granted or ctx ends. The returned file holds the
// lock until it is closed.
func flockFile(ctx context.Context, path string, how int) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	for {
		err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, err
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, repo.ErrLockTimeout
		case <-time.After(lockPoll):
		}
	}
}

// Closing the descriptor releases the flock.
func releaseFile(f *os.File) error {
	return f.Close()
}
