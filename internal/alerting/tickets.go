package alerting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hamed0406/checkmk-notify/internal/domain"
	"github.com/hamed0406/checkmk-notify/internal/glpi"
	"github.com/hamed0406/checkmk-notify/internal/repo"
	"go.uber.org/zap"
)

type Action int

const (
	Ignored Action = iota
	Created
	AlreadyOpen
	Closed
	NoRecord
)

func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case AlreadyOpen:
		return "already_open"
	case Closed:
		return "closed"
	case NoRecord:
		return "no_record"
	}
	return "ignored"
}

// Result describes what Tickets.Handle did. TicketID is set for Created
// and Closed.
type Result struct {
	Action      Action
	Fingerprint string
	TicketID    int
}

// TicketSession is an open ticketing session. *glpi.Session implements it.
type TicketSession interface {
	CreateTicket(ctx context.Context, t glpi.Ticket) (int, error)
	CloseTicket(ctx context.Context, id int) error
	Close(ctx context.Context) error
}

// SessionOpener opens a session for one invocation.
type SessionOpener func(ctx context.Context) (TicketSession, error)

// GLPISessions adapts a glpi.Client to a SessionOpener.
func GLPISessions(c *glpi.Client) SessionOpener {
	return func(ctx context.Context) (TicketSession, error) {
		s, err := c.InitSession(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type TicketsConfig struct {
	LockTimeout time.Duration
	// CloseTimeout bounds killSession when ctx is already done.
	CloseTimeout time.Duration
}

// Tickets keeps one open ticket per host and service: a problem opens it
// and the matching recovery solves it.
type Tickets struct {
	store repo.Store
	open  SessionOpener
	cfg   TicketsConfig
	log   *zap.Logger
}

func NewTickets(store repo.Store, open SessionOpener, cfg TicketsConfig, log *zap.Logger) *Tickets {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}
	return &Tickets{store: store, open: open, cfg: cfg, log: log}
}

// TicketFingerprint is the state key of the open ticket for host and
// service.
func TicketFingerprint(host, service string) string {
	return host + "_" + service
}

func (t *Tickets) Handle(ctx context.Context, ev domain.Event) (Result, error) {
	ev = ev.WithDefaults(domain.TicketDefaults)
	fp := TicketFingerprint(ev.Host, ev.Service)
	res := Result{Action: Ignored, Fingerprint: fp}
	log := t.log.With(zap.String("fingerprint", fp), zap.String("state", ev.State))

	if !ev.IsProblem() && !ev.IsRecovery() {
		log.Info("state ignored")
		return res, nil
	}

	release, err := acquire(ctx, t.store, fp, t.cfg.LockTimeout, t.log)
	if err != nil {
		return res, err
	}
	defer release()

	raw, exists, err := t.store.Get(ctx, fp)
	if err != nil {
		return res, fmt.Errorf("load ticket state: %w", err)
	}

	switch {
	case ev.IsProblem() && exists:
		res.Action = AlreadyOpen
		if id, err := strconv.Atoi(raw); err == nil {
			res.TicketID = id
		}
		log.Info("ticket already open", zap.String("ticket", raw))
		return res, nil
	case ev.IsRecovery() && !exists:
		res.Action = NoRecord
		log.Info("no open ticket to close")
		return res, nil
	}

	var id int
	if exists {
		if id, err = strconv.Atoi(raw); err != nil {
			return res, fmt.Errorf("stored ticket id %q for %s is not an integer", raw, fp)
		}
	}

	sess, err := t.open(ctx)
	if err != nil {
		return res, fmt.Errorf("open ticket session: %w", err)
	}
	defer t.closeSession(ctx, sess)

	if ev.IsProblem() {
		id, err := sess.CreateTicket(ctx, glpi.NewIncident(ev.Host, ev.Service, ev.State, ev.Output))
		if err != nil {
			return res, fmt.Errorf("create ticket: %w", err)
		}
		res.Action, res.TicketID = Created, id
		if err := t.store.Set(ctx, fp, strconv.Itoa(id)); err != nil {
			return res, fmt.Errorf("save ticket %d: %w", id, err)
		}
		log.Info("ticket created", zap.Int("ticket", id))
		return res, nil
	}

	if err := sess.CloseTicket(ctx, id); err != nil {
		return res, fmt.Errorf("close ticket %d: %w", id, err)
	}
	res.Action, res.TicketID = Closed, id
	if err := t.store.Delete(ctx, fp); err != nil {
		return res, fmt.Errorf("forget ticket %d: %w", id, err)
	}
	log.Info("ticket closed", zap.Int("ticket", id))
	return res, nil
}

func (t *Tickets) closeSession(ctx context.Context, sess TicketSession) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.CloseTimeout)
	defer cancel()
	if err := sess.Close(cctx); err != nil {
		t.log.Warn("ticket session close failed", zap.Error(err))
	}
}
