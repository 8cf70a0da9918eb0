// Package dedup suppresses repeat notifications for the same alert within
// a time window.
package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

const DefaultWindow = 300 * time.Second

type Verdict int

const (
	NotDuplicate Verdict = iota
	Duplicate
	CheckFailed
)

func (v Verdict) String() string {
	switch v {
	case NotDuplicate:
		return "not_duplicate"
	case Duplicate:
		return "duplicate"
	case CheckFailed:
		return "check_failed"
	}
	return "verdict(" + strconv.Itoa(int(v)) + ")"
}

// Fingerprint identifies an alert by host, service and state. The MD5 hex
// form matches the fingerprints already stored in existing dedup logs.
func Fingerprint(host, service, state string) string {
	sum := md5.Sum([]byte(host + "_" + service + "_" + state))
	return hex.EncodeToString(sum[:])
}

// Window remembers when each fingerprint was last sent. Store values are
// unix timestamps in seconds.
type Window struct {
	Store repo.Store
	Size  time.Duration
	Now   func() time.Time
}

func NewWindow(store repo.Store, size time.Duration) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{Store: store, Size: size, Now: time.Now}
}

// Check reports whether fp was recorded less than Size ago. The error is
// set only for CheckFailed.
func (w *Window) Check(ctx context.Context, fp string) (Verdict, error) {
	v, ok, err := w.Store.Get(ctx, fp)
	if err != nil {
		return CheckFailed, fmt.Errorf("dedup lookup: %w", err)
	}
	if !ok {
		return NotDuplicate, nil
	}
	seen, err := parseUnix(v)
	if err != nil {
		// a damaged entry is treated as never seen; Record overwrites it
		return NotDuplicate, nil
	}
	if w.fresh(w.Now(), seen) {
		return Duplicate, nil
	}
	return NotDuplicate, nil
}

// fresh reports whether seen lies inside the window ending at now. A
// timestamp ahead of now, left by a clock that stepped back, is not fresh.
func (w *Window) fresh(now, seen time.Time) bool {
	d := now.Sub(seen)
	return d >= 0 && d < w.Size
}

// Record stores fp with the current time and drops every entry that has
// left the window, so the log stays bounded. An entry another process
// rewrote after the listing is kept.
func (w *Window) Record(ctx context.Context, fp string) error {
	now := w.Now()
	if err := w.Store.Set(ctx, fp, formatUnix(now)); err != nil {
		return fmt.Errorf("dedup record: %w", err)
	}
	all, err := w.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("dedup prune: %w", err)
	}
	expired := make(map[string]string)
	for k, v := range all {
		if k == fp {
			continue
		}
		if seen, err := parseUnix(v); err == nil && w.fresh(now, seen) {
			continue
		}
		expired[k] = v
	}
	if len(expired) == 0 {
		return nil
	}
	if _, err := w.Store.DeleteUnchanged(ctx, expired); err != nil {
		return fmt.Errorf("dedup prune: %w", err)
	}
	return nil
}

func parseUnix(v string) (time.Time, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, err
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), nil
}

func formatUnix(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}
