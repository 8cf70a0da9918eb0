// Package alerting turns CheckMK notification events into chat messages
// and GLPI tickets.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/checkmk-notify/internal/dedup"
	"github.com/hamed0406/checkmk-notify/internal/domain"
	"github.com/hamed0406/checkmk-notify/internal/notify"
	"github.com/hamed0406/checkmk-notify/internal/repo"
	"go.uber.org/zap"
)

type Outcome int

const (
	Sent Outcome = iota
	Suppressed
)

func (o Outcome) String() string {
	if o == Suppressed {
		return "suppressed"
	}
	return "sent"
}

type ChatConfig struct {
	Window      time.Duration
	LockTimeout time.Duration
}

// Chat posts an event to the chat notifier unless the same host, service
// and state was posted within the dedup window.
type Chat struct {
	store    repo.Store
	window   *dedup.Window
	notifier notify.Notifier
	cfg      ChatConfig
	log      *zap.Logger
}

func NewChat(store repo.Store, notifier notify.Notifier, cfg ChatConfig, log *zap.Logger) *Chat {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chat{
		store:    store,
		window:   dedup.NewWindow(store, cfg.Window),
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// Handle fingerprints the raw event, then sends the defaulted event. The
// fingerprint lock is held until the send is recorded so concurrent
// identical events post once.
func (c *Chat) Handle(ctx context.Context, ev domain.Event) (Outcome, error) {
	fp := dedup.Fingerprint(ev.Host, ev.Service, ev.State)
	ev = ev.WithDefaults(domain.ChatDefaults)
	log := c.log.With(zap.String("fingerprint", fp), zap.String("host", ev.Host),
		zap.String("service", ev.Service), zap.String("state", ev.State))

	release, err := acquire(ctx, c.store, fp, c.cfg.LockTimeout, c.log)
	if err != nil {
		return Sent, err
	}
	defer release()

	verdict, err := c.window.Check(ctx, fp)
	switch verdict {
	case dedup.Duplicate:
		log.Info("duplicate alert suppressed")
		return Suppressed, nil
	case dedup.CheckFailed:
		// fail open
		log.Warn("dedup check failed, sending anyway", zap.Error(err))
	}

	if err := c.notifier.Send(ctx, notify.Alert{
		Host:          ev.Host,
		Service:       ev.Service,
		State:         ev.State,
		Output:        ev.Output,
		ShortDateTime: ev.ShortDateTime,
	}); err != nil {
		return Sent, fmt.Errorf("send notification: %w", err)
	}
	log.Info("notification sent")

	if err := c.window.Record(ctx, fp); err != nil {
		return Sent, err
	}
	return Sent, nil
}
