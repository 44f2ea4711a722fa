// Package config loads the duosync configuration from an optional YAML file, a .env
// file and DUOSYNC_* environment variables, in that order of precedence from lowest
// to highest.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GetStream/duosync/api/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the daemon and the CLI.
type Config struct {
	Gateway  Gateway  `yaml:"gateway"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Session  Session  `yaml:"session"`
	Feed     Feed     `yaml:"feed"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

// Gateway selects and configures the backend the feeds sync with.
type Gateway struct {
	Kind    string        `yaml:"kind" validate:"oneof=http postgres"`
	URL     string        `yaml:"url" validate:"required_if=Kind http,omitempty,url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	RPS     float64       `yaml:"rps" validate:"gte=0"`
	Burst   int           `yaml:"burst" validate:"gte=0"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

// Redis configures the warm start cache. An empty address disables it.
type Redis struct {
	Addr     string `yaml:"addr"`
	MaxItems int    `yaml:"max_items" validate:"gte=0"`
}

// Session identifies the user, the partner and their conversation.
type Session struct {
	UserID         string `yaml:"user_id" validate:"required"`
	PartnerID      string `yaml:"partner_id"`
	ConversationID string `yaml:"conversation_id"`
}

type Feed struct {
	NotificationPageSize int           `yaml:"notification_page_size" validate:"gte=1,lte=100"`
	MessagePageSize      int           `yaml:"message_page_size" validate:"gte=1,lte=100"`
	PollInterval         time.Duration `yaml:"poll_interval" validate:"gte=0"`
}

type Server struct {
	Addr string `yaml:"addr" validate:"required"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns a configuration with defaults for everything but the session.
func Default() *Config {
	return &Config{
		Gateway: Gateway{
			Kind:    "http",
			Timeout: 20 * time.Second,
		},
		Redis: Redis{
			MaxItems: 50,
		},
		Feed: Feed{
			NotificationPageSize: 10,
			MessagePageSize:      20,
			PollInterval:         30 * time.Second,
		},
		Server: Server{
			Addr: "127.0.0.1:7070",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only defaults and
// the environment are used. A .env file in the working directory is loaded if present.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if errs := validator.New().ValidateStruct(c); len(errs) > 0 {
		return errs
	}
	if c.Gateway.Kind == "postgres" && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when gateway.kind is postgres")
	}
	return nil
}

// SlogLevel maps Level to a slog level, defaulting to info.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger writing to w.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides cfg with DUOSYNC_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"DUOSYNC_GATEWAY_KIND":            &cfg.Gateway.Kind,
		"DUOSYNC_GATEWAY_URL":             &cfg.Gateway.URL,
		"DUOSYNC_GATEWAY_TOKEN":           &cfg.Gateway.Token,
		"DUOSYNC_POSTGRES_DSN":            &cfg.Postgres.DSN,
		"DUOSYNC_REDIS_ADDR":              &cfg.Redis.Addr,
		"DUOSYNC_SESSION_USER_ID":         &cfg.Session.UserID,
		"DUOSYNC_SESSION_PARTNER_ID":      &cfg.Session.PartnerID,
		"DUOSYNC_SESSION_CONVERSATION_ID": &cfg.Session.ConversationID,
		"DUOSYNC_SERVER_ADDR":             &cfg.Server.Addr,
		"DUOSYNC_LOG_LEVEL":               &cfg.Log.Level,
		"DUOSYNC_LOG_FORMAT":              &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DUOSYNC_GATEWAY_BURST":               &cfg.Gateway.Burst,
		"DUOSYNC_REDIS_MAX_ITEMS":             &cfg.Redis.MaxItems,
		"DUOSYNC_FEED_NOTIFICATION_PAGE_SIZE": &cfg.Feed.NotificationPageSize,
		"DUOSYNC_FEED_MESSAGE_PAGE_SIZE":      &cfg.Feed.MessagePageSize,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	durs := map[string]*time.Duration{
		"DUOSYNC_GATEWAY_TIMEOUT":    &cfg.Gateway.Timeout,
		"DUOSYNC_FEED_POLL_INTERVAL": &cfg.Feed.PollInterval,
	}
	for key, dst := range durs {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("DUOSYNC_GATEWAY_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid DUOSYNC_GATEWAY_RPS: %w", err)
		}
		cfg.Gateway.RPS = rps
	}
	return nil
}
