package alerting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hamed0406/checkmk-notify/internal/domain"
	"github.com/hamed0406/checkmk-notify/internal/glpi"
	"github.com/hamed0406/checkmk-notify/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSession struct {
	mu        sync.Mutex
	nextID    int
	created   []glpi.Ticket
	closedIDs []int
	sessions  int
	kills     int

	createErr error
	closeErr  error
	killErr   error
}

func (f *fakeSession) opener(ctx context.Context) (TicketSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return f, nil
}

func (f *fakeSession) CreateTicket(ctx context.Context, t glpi.Ticket) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	f.created = append(f.created, t)
	return f.nextID, nil
}

func (f *fakeSession) CloseTicket(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closedIDs = append(f.closedIDs, id)
	return nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	return f.killErr
}

func ev(state string) domain.Event {
	return domain.Event{Host: "host1", Service: "svcA", State: state, Output: "out"}
}

func TestTickets_Lifecycle(t *testing.T) {
	store := memory.New()
	fs := &fakeSession{nextID: 41}
	tk := NewTickets(store, fs.opener, TicketsConfig{}, nil)
	ctx := context.Background()

	res, err := tk.Handle(ctx, ev("CRITICAL"))
	require.NoError(t, err)
	assert.Equal(t, Result{Action: Created, Fingerprint: "host1_svcA", TicketID: 42}, res)
	v, ok, _ := store.Get(ctx, "host1_svcA")
	require.True(t, ok)
	assert.Equal(t, "42", v)

	res, err = tk.Handle(ctx, ev("WARNING"))
	require.NoError(t, err)
	assert.Equal(t, AlreadyOpen, res.Action)
	assert.Equal(t, 42, res.TicketID)
	assert.Len(t, fs.created, 1)

	res, err = tk.Handle(ctx, ev("OK"))
	require.NoError(t, err)
	assert.Equal(t, Result{Action: Closed, Fingerprint: "host1_svcA", TicketID: 42}, res)
	assert.Equal(t, []int{42}, fs.closedIDs)
	_, ok, _ = store.Get(ctx, "host1_svcA")
	assert.False(t, ok)

	res, err = tk.Handle(ctx, ev("OK"))
	require.NoError(t, err)
	assert.Equal(t, NoRecord, res.Action)

	res, err = tk.Handle(ctx, ev("UNKNOWN"))
	require.NoError(t, err)
	assert.Equal(t, Ignored, res.Action)

	// sessions only for the create and the close, each one closed
	assert.Equal(t, 2, fs.sessions)
	assert.Equal(t, 2, fs.kills)
}

func TestTickets_DefaultsInFingerprintAndTicket(t *testing.T) {
	store := memory.New()
	fs := &fakeSession{}
	tk := NewTickets(store, fs.opener, TicketsConfig{}, nil)

	res, err := tk.Handle(context.Background(), domain.Event{State: "WARNING"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown_Service", res.Fingerprint)
	require.Len(t, fs.created, 1)
	assert.Equal(t, "WARNING on Unknown", fs.created[0].Name)
	assert.Equal(t, "Issue with service 'Service' on host 'Unknown'\n\nDetails: No output", fs.created[0].Content)
}

func TestTickets_EmptyHostVariableKeepsEmptyFingerprintPart(t *testing.T) {
	fs := &fakeSession{}
	tk := NewTickets(memory.New(), fs.opener, TicketsConfig{}, nil)
	env := map[string]string{domain.EnvHost: "", domain.EnvService: "svc", domain.EnvState: "WARNING"}

	res, err := tk.Handle(context.Background(), domain.EventFromLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	require.NoError(t, err)
	assert.Equal(t, "_svc", res.Fingerprint)
}

func TestTickets_SessionClosedWhenCreateFails(t *testing.T) {
	store := memory.New()
	fs := &fakeSession{createErr: errors.New("ERROR_BAD_ARRAY")}
	tk := NewTickets(store, fs.opener, TicketsConfig{}, nil)

	_, err := tk.Handle(context.Background(), ev("CRITICAL"))
	require.Error(t, err)
	assert.Equal(t, 1, fs.kills)

	all, _ := store.List(context.Background())
	assert.Empty(t, all)
}

func TestTickets_CloseFailureKeepsRecord(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "host1_svcA", "7"))
	fs := &fakeSession{closeErr: errors.New("timeout")}
	tk := NewTickets(store, fs.opener, TicketsConfig{}, nil)

	_, err := tk.Handle(ctx, ev("OK"))
	require.Error(t, err)
	assert.Equal(t, 1, fs.kills)
	v, ok, _ := store.Get(ctx, "host1_svcA")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestTickets_KillSessionFailureOnlyWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fs := &fakeSession{killErr: errors.New("ERROR_SESSION_TOKEN_INVALID")}
	tk := NewTickets(memory.New(), fs.opener, TicketsConfig{}, zap.New(core))

	res, err := tk.Handle(context.Background(), ev("CRITICAL"))
	require.NoError(t, err)
	assert.Equal(t, Created, res.Action)
	assert.Equal(t, 1, logs.FilterMessage("ticket session close failed").Len())
}

func TestTickets_BadStoredID(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "host1_svcA", "abc"))
	fs := &fakeSession{}
	tk := NewTickets(store, fs.opener, TicketsConfig{}, nil)

	_, err := tk.Handle(ctx, ev("OK"))
	require.Error(t, err)
	assert.Zero(t, fs.sessions)
}

func TestTickets_OpenFailure(t *testing.T) {
	tk := NewTickets(memory.New(), func(ctx context.Context) (TicketSession, error) {
		return nil, errors.New("connection refused")
	}, TicketsConfig{}, nil)

	_, err := tk.Handle(context.Background(), ev("CRITICAL"))
	assert.ErrorContains(t, err, "connection refused")
}

// Drives the handler against a fake GLPI server through the real client.
func TestTickets_AgainstGLPI(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	rec := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls = append(calls, r.Method+" "+r.URL.Path)
			mu.Unlock()
			next(w, r)
		}
	}
	r := chi.NewRouter()
	r.Get("/initSession", rec(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"session_token":"abc"}`))
	}))
	r.Get("/killSession", rec(func(w http.ResponseWriter, r *http.Request) {}))
	r.Post("/Ticket", rec(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`["ERROR","database unavailable"]`))
	}))
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := glpi.New(srv.URL, "app", "user", time.Second)
	tk := NewTickets(memory.New(), GLPISessions(c), TicketsConfig{}, nil)

	_, err := tk.Handle(context.Background(), ev("CRITICAL"))
	var apiErr *glpi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, []string{"GET /initSession", "POST /Ticket", "GET /killSession"}, calls)
}
