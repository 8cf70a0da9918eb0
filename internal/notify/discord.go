package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const checkmkIcon = "https://checkmk.com/favicon.ico"

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.Code, e.Body)
}

type Discord struct {
	Webhook string
	Client  *http.Client
}

func NewDiscord(webhook string, timeout time.Duration) *Discord {
	if webhook == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Discord{
		Webhook: webhook,
		Client:  &http.Client{Timeout: timeout},
	}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url"`
}

type embed struct {
	Title       string       `json:"title"`
	Color       int          `json:"color"`
	Description string       `json:"description"`
	Fields      []embedField `json:"fields"`
	Footer      embedFooter  `json:"footer"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Embeds []embed `json:"embeds"`
}

func buildEmbed(a Alert) embed {
	st := StyleFor(a.State, a.Output)
	host := Escape(a.Host)
	return embed{
		Title:       fmt.Sprintf("%s %s - %s %s", st.Emoji, st.Title, host, st.Emoji),
		Color:       st.Color,
		Description: st.Description,
		Fields: []embedField{
			{Name: "🖥️ Server", Value: host, Inline: true},
			{Name: "🔧 Service", Value: Escape(a.Service), Inline: true},
			{Name: "📢 Status Update", Value: st.Details},
		},
		Footer:    embedFooter{Text: st.Footer, IconURL: checkmkIcon},
		Timestamp: embedTimestamp(a.ShortDateTime),
	}
}

// CheckMK's short date has no zone; it is taken as local time.
var shortDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// embedTimestamp turns a CheckMK date into the ISO 8601 form Discord wants.
// Values in an unknown layout are passed through unchanged.
func embedTimestamp(v string) string {
	if v == "" {
		return ""
	}
	for _, layout := range shortDateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return v
}

func (d *Discord) Send(ctx context.Context, a Alert) error {
	if d == nil || d.Webhook == "" {
		return errors.New("discord disabled")
	}
	body, err := json.Marshal(discordPayload{Embeds: []embed{buildEmbed(a)}})
	if err != nil {
		return fmt.Errorf("encode embed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	return nil
}
