// Package glpi is a minimal client for the GLPI REST API (apirest.php):
// session handling and creating/solving tickets.
package glpi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	AppToken   string
	UserToken  string
	CategoryID int
	HTTP       *http.Client
}

func New(baseURL, appToken, userToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AppToken:   appToken,
		UserToken:  userToken,
		CategoryID: DefaultCategoryID,
		HTTP:       &http.Client{Timeout: timeout},
	}
}

// Session is an authenticated GLPI session. Close must be called to
// invalidate the token.
type Session struct {
	c     *Client
	Token string
}

// InitSession authenticates with the user token.
func (c *Client) InitSession(ctx context.Context) (*Session, error) {
	var out struct {
		SessionToken string `json:"session_token"`
	}
	headers := map[string]string{
		"Authorization": "user_token " + c.UserToken,
		"App-Token":     c.AppToken,
	}
	if err := c.do(ctx, "initSession", http.MethodGet, "/initSession", headers, nil, &out); err != nil {
		return nil, err
	}
	if out.SessionToken == "" {
		return nil, errors.New("glpi initSession: empty session_token")
	}
	return &Session{c: c, Token: out.SessionToken}, nil
}

// Close kills the session.
func (s *Session) Close(ctx context.Context) error {
	return s.c.do(ctx, "killSession", http.MethodGet, "/killSession", s.headers(), nil, nil)
}

// CreateTicket creates t and returns the id GLPI assigned. A zero
// CategoryID is replaced by the client's.
func (s *Session) CreateTicket(ctx context.Context, t Ticket) (int, error) {
	if t.CategoryID == 0 {
		t.CategoryID = s.c.CategoryID
	}
	var out struct {
		ID json.Number `json:"id"`
	}
	if err := s.c.do(ctx, "createTicket", http.MethodPost, "/Ticket", s.headers(), inputEnvelope{Input: t}, &out); err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(out.ID.String())
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("glpi createTicket: unexpected id %q", out.ID)
	}
	return id, nil
}

// CloseTicket marks ticket id as solved.
func (s *Session) CloseTicket(ctx context.Context, id int) error {
	body := inputEnvelope{Input: ticketUpdate{ID: id, Status: StatusSolved}}
	return s.c.do(ctx, "closeTicket", http.MethodPut, "/Ticket/"+strconv.Itoa(id), s.headers(), body, nil)
}

func (s *Session) headers() map[string]string {
	return map[string]string{
		"App-Token":     s.c.AppToken,
		"Session-Token": s.Token,
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("glpi %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("glpi %s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("glpi %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("glpi %s: read body: %w", op, err)
	}
	if resp.StatusCode/100 != 2 {
		return newAPIError(op, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("glpi %s: decode: %w", op, err)
	}
	return nil
}
