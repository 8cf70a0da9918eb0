package glpi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGLPI records every call made against it.
type fakeGLPI struct {
	mu      sync.Mutex
	calls   []string
	created []Ticket
	closed  []int
	nextID  int

	failCreate bool
}

func (f *fakeGLPI) record(r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()
}

func (f *fakeGLPI) router(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Get("/initSession", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.Header.Get("Authorization") != "user_token user" || r.Header.Get("App-Token") != "app" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`["ERROR_GLPI_LOGIN_USER_TOKEN","parameter user_token seems invalid"]`))
			return
		}
		_, _ = w.Write([]byte(`{"session_token":"sess-1"}`))
	})
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				f.record(r)
				if r.Header.Get("Session-Token") != "sess-1" || r.Header.Get("App-Token") != "app" {
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`["ERROR_SESSION_TOKEN_INVALID","session_token seems invalid"]`))
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/killSession", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Post("/Ticket", func(w http.ResponseWriter, r *http.Request) {
			if f.failCreate {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`["ERROR_BAD_ARRAY","input parameter must be an array of objects"]`))
				return
			}
			var body struct {
				Input Ticket `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			f.mu.Lock()
			f.nextID++
			id := f.nextID
			f.created = append(f.created, body.Input)
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":` + strconv.Itoa(id) + `,"message":"Item successfully added"}`))
		})
		r.Put("/Ticket/{id}", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Input ticketUpdate `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode update body: %v", err)
			}
			if chi.URLParam(r, "id") != strconv.Itoa(body.Input.ID) || body.Input.Status != StatusSolved {
				t.Errorf("bad update: path id %s body %+v", chi.URLParam(r, "id"), body.Input)
			}
			f.mu.Lock()
			f.closed = append(f.closed, body.Input.ID)
			f.mu.Unlock()
			_, _ = w.Write([]byte(`[{"` + strconv.Itoa(body.Input.ID) + `":true,"message":""}]`))
		})
	})
	return r
}

func newTestClient(t *testing.T, f *fakeGLPI) *Client {
	srv := httptest.NewServer(f.router(t))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "app", "user", time.Second)
}

func TestClient_TicketLifecycle(t *testing.T) {
	f := &fakeGLPI{nextID: 41}
	c := newTestClient(t, f)
	ctx := context.Background()

	s, err := c.InitSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", s.Token)

	id, err := s.CreateTicket(ctx, NewIncident("host1", "svcA", "CRITICAL", "disk full"))
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	require.NoError(t, s.CloseTicket(ctx, id))
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, []string{
		"GET /initSession",
		"POST /Ticket",
		"PUT /Ticket/42",
		"GET /killSession",
	}, f.calls)
	assert.Equal(t, []int{42}, f.closed)

	require.Len(t, f.created, 1)
	got := f.created[0]
	assert.Equal(t, "CRITICAL on host1", got.Name)
	assert.Equal(t, "Issue with service 'svcA' on host 'host1'\n\nDetails: disk full", got.Content)
	assert.Equal(t, DefaultCategoryID, got.CategoryID)
	assert.Equal(t, StatusNew, got.Status)
	assert.Equal(t, PriorityMedium, got.Priority)
}

func TestClient_InitSessionRejected(t *testing.T) {
	f := &fakeGLPI{}
	c := newTestClient(t, f)
	c.UserToken = "wrong"

	_, err := c.InitSession(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "want *APIError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "ERROR_GLPI_LOGIN_USER_TOKEN", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "user_token seems invalid")
}

func TestClient_CreateFailureIsAPIError(t *testing.T) {
	f := &fakeGLPI{failCreate: true}
	c := newTestClient(t, f)
	c.CategoryID = 5
	ctx := context.Background()

	s, err := c.InitSession(ctx)
	require.NoError(t, err)

	_, err = s.CreateTicket(ctx, NewIncident("h", "s", "WARNING", "o"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "ERROR_BAD_ARRAY", apiErr.Code)
}

func TestClient_UnexpectedCreateBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/initSession" {
			_, _ = w.Write([]byte(`{"session_token":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"no id here"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "app", "user", time.Second)
	s, err := c.InitSession(context.Background())
	require.NoError(t, err)
	_, err = s.CreateTicket(context.Background(), Ticket{Name: "x"})
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, "app", "user", 50*time.Millisecond)
	_, err := c.InitSession(context.Background())
	assert.Error(t, err)
}

func TestNewAPIError_PlainBody(t *testing.T) {
	e := newAPIError("closeTicket", 500, []byte("internal error"))
	assert.Empty(t, e.Code)
	assert.Equal(t, "glpi closeTicket: 500: internal error", e.Error())
}
