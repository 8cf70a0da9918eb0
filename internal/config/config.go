package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// File names inside StateDir, the same ones the CheckMK scripts have always
// used under /tmp.
const (
	DedupLogFile    = "checkmk_discord_state.log"
	ErrorLogFile    = "checkmk_discord_errors.log"
	TicketStateFile = "glpi_ticket_state.json"
	BoltFile        = "checkmk_notify.db"
)

type Config struct {
	WebhookURLs []string `yaml:"webhook_urls"` // Discord webhooks, one post per URL
	APIURL      string   `yaml:"api_url"`      // GLPI apirest.php base URL
	AppToken    string   `yaml:"app_token"`
	UserToken   string   `yaml:"user_token"`
	CategoryID  int      `yaml:"category_id"` // ITIL category for new tickets

	StateDir     string `yaml:"state_dir"`
	StateBackend string `yaml:"state_backend"` // file | bolt | postgres
	DatabaseURL  string `yaml:"database_url"`  // postgres backend only
	LogDir       string `yaml:"log_dir"`

	DedupWindowSeconds int `yaml:"dedup_window_seconds"`
	HTTPTimeoutMS      int `yaml:"http_timeout_ms"`
	LockTimeoutMS      int `yaml:"lock_timeout_ms"`
}

func defaults() Config {
	return Config{
		CategoryID:         698,
		StateDir:           os.TempDir(),
		StateBackend:       BackendFile,
		DedupWindowSeconds: 300,
		HTTPTimeoutMS:      10_000,
		LockTimeoutMS:      30_000,
	}
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() Config {
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

// Load reads the optional YAML file named by NOTIFY_CONFIG_FILE and then
// lets environment variables override it.
func Load() (Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("NOTIFY_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.WebhookURLs = splitList(v)
	}
	setString(&cfg.APIURL, "GLPI_API_URL")
	setString(&cfg.AppToken, "GLPI_APP_TOKEN")
	setString(&cfg.UserToken, "GLPI_USER_TOKEN")
	setPositiveInt(&cfg.CategoryID, "GLPI_CATEGORY_ID")

	setString(&cfg.StateDir, "NOTIFY_STATE_DIR")
	setString(&cfg.StateBackend, "NOTIFY_STATE_BACKEND")
	setString(&cfg.DatabaseURL, "NOTIFY_DATABASE_URL")
	setString(&cfg.LogDir, "NOTIFY_LOG_DIR")

	setPositiveInt(&cfg.DedupWindowSeconds, "DEDUP_WINDOW_SECONDS")
	setPositiveInt(&cfg.HTTPTimeoutMS, "HTTP_TIMEOUT_MS")
	setPositiveInt(&cfg.LockTimeoutMS, "NOTIFY_LOCK_TIMEOUT_MS")

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.StateBackend = strings.ToLower(cfg.StateBackend)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.StateDir, "checkmk-notify-logs")
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setPositiveInt ignores values that do not parse or are not positive,
// keeping the previous value.
func setPositiveInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSeconds) * time.Second
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

func (c Config) DedupLogPath() string    { return filepath.Join(c.StateDir, DedupLogFile) }
func (c Config) ErrorLogPath() string    { return filepath.Join(c.StateDir, ErrorLogFile) }
func (c Config) TicketStatePath() string { return filepath.Join(c.StateDir, TicketStateFile) }
func (c Config) BoltPath() string        { return filepath.Join(c.StateDir, BoltFile) }

// ValidateChat reports every missing or malformed option the Discord
// notifier needs.
func (c Config) ValidateChat() error {
	var err error
	if len(c.WebhookURLs) == 0 {
		err = multierr.Append(err, errors.New("DISCORD_WEBHOOK_URL is required"))
	}
	for _, u := range c.WebhookURLs {
		err = multierr.Append(err, checkURL("webhook url", u))
	}
	return multierr.Append(err, c.validateState())
}

// ValidateTicketing reports every missing or malformed option the GLPI
// notifier needs.
func (c Config) ValidateTicketing() error {
	var err error
	if c.APIURL == "" {
		err = multierr.Append(err, errors.New("GLPI_API_URL is required"))
	} else {
		err = multierr.Append(err, checkURL("GLPI api url", c.APIURL))
	}
	if c.AppToken == "" {
		err = multierr.Append(err, errors.New("GLPI_APP_TOKEN is required"))
	}
	if c.UserToken == "" {
		err = multierr.Append(err, errors.New("GLPI_USER_TOKEN is required"))
	}
	return multierr.Append(err, c.validateState())
}

func (c Config) validateState() error {
	var err error
	if c.StateDir == "" {
		err = multierr.Append(err, errors.New("NOTIFY_STATE_DIR is empty"))
	}
	switch c.StateBackend {
	case BackendFile, BackendBolt:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			err = multierr.Append(err, errors.New("NOTIFY_DATABASE_URL is required for the postgres backend"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown state backend %q", c.StateBackend))
	}
	return err
}

func checkURL(what, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", what, raw)
	}
	return nil
}
