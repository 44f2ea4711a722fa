package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GetStream/duosync/api/validator"
	"github.com/google/go-cmp/cmp"
)

func env(vars map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    func(*Config)
		wantErr string
	}{
		{
			name: "Empty",
			vars: map[string]string{},
			want: func(*Config) {},
		},
		{
			name: "Strings",
			vars: map[string]string{
				"DUOSYNC_GATEWAY_URL":             "https://api.example.com/api",
				"DUOSYNC_SESSION_USER_ID":         "u1",
				"DUOSYNC_SESSION_CONVERSATION_ID": "c1",
				"DUOSYNC_LOG_FORMAT":              "json",
			},
			want: func(c *Config) {
				c.Gateway.URL = "https://api.example.com/api"
				c.Session.UserID = "u1"
				c.Session.ConversationID = "c1"
				c.Log.Format = "json"
			},
		},
		{
			name: "Numbers",
			vars: map[string]string{
				"DUOSYNC_GATEWAY_RPS":                 "2.5",
				"DUOSYNC_GATEWAY_BURST":               "4",
				"DUOSYNC_FEED_NOTIFICATION_PAGE_SIZE": "25",
				"DUOSYNC_GATEWAY_TIMEOUT":             "5s",
				"DUOSYNC_FEED_POLL_INTERVAL":          "1m",
			},
			want: func(c *Config) {
				c.Gateway.RPS = 2.5
				c.Gateway.Burst = 4
				c.Feed.NotificationPageSize = 25
				c.Gateway.Timeout = 5 * time.Second
				c.Feed.PollInterval = time.Minute
			},
		},
		{
			name:    "BadInt",
			vars:    map[string]string{"DUOSYNC_REDIS_MAX_ITEMS": "many"},
			wantErr: "invalid DUOSYNC_REDIS_MAX_ITEMS",
		},
		{
			name:    "BadDuration",
			vars:    map[string]string{"DUOSYNC_GATEWAY_TIMEOUT": "soon"},
			wantErr: "invalid DUOSYNC_GATEWAY_TIMEOUT",
		},
		{
			name:    "BadFloat",
			vars:    map[string]string{"DUOSYNC_GATEWAY_RPS": "fast"},
			wantErr: "invalid DUOSYNC_GATEWAY_RPS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := applyEnv(cfg, env(tt.vars))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("applyEnv() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyEnv() error = %v", err)
			}
			want := Default()
			tt.want(want)
			if diff := cmp.Diff(want, cfg); diff != "" {
				t.Errorf("applyEnv() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Gateway.URL = "https://api.example.com/api"
		c.Session.UserID = "u1"
		return c
	}

	tests := []struct {
		name   string
		modify func(*Config)
		fields []string
		errMsg string
	}{
		{
			name:   "Valid",
			modify: func(*Config) {},
		},
		{
			name:   "MissingUser",
			modify: func(c *Config) { c.Session.UserID = "" },
			fields: []string{"session.user_id"},
		},
		{
			name:   "MissingURL",
			modify: func(c *Config) { c.Gateway.URL = "" },
			fields: []string{"gateway.url"},
		},
		{
			name: "BadEnums",
			modify: func(c *Config) {
				c.Gateway.Kind = "grpc"
				c.Log.Level = "verbose"
			},
			fields: []string{"gateway.kind", "log.level"},
		},
		{
			name:   "PageSizeTooLarge",
			modify: func(c *Config) { c.Feed.MessagePageSize = 500 },
			fields: []string{"feed.message_page_size"},
		},
		{
			name: "PostgresWithoutDSN",
			modify: func(c *Config) {
				c.Gateway.Kind = "postgres"
				c.Gateway.URL = ""
			},
			errMsg: "postgres.dsn is required",
		},
		{
			name: "Postgres",
			modify: func(c *Config) {
				c.Gateway.Kind = "postgres"
				c.Gateway.URL = ""
				c.Postgres.DSN = "postgres://localhost/duo"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			err := c.Validate()

			switch {
			case len(tt.fields) > 0:
				var errs validator.Errors
				if !errors.As(err, &errs) {
					t.Fatalf("Validate() error = %v, want validator.Errors", err)
				}
				var got []string
				for _, e := range errs {
					got = append(got, e.Field)
				}
				if diff := cmp.Diff(tt.fields, got); diff != "" {
					t.Errorf("Validate() fields mismatch (-want +got):\n%s", diff)
				}
			case tt.errMsg != "":
				if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want %q", err, tt.errMsg)
				}
			case err != nil:
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "duosync.yaml")
	data := `
gateway:
  url: https://api.example.com/api
  rps: 3
session:
  user_id: from-file
  partner_id: p1
feed:
  poll_interval: 10s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DUOSYNC_SESSION_USER_ID", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Gateway.URL = "https://api.example.com/api"
	want.Gateway.RPS = 3
	want.Session.UserID = "from-env"
	want.Session.PartnerID = "p1"
	want.Feed.PollInterval = 10 * time.Second
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestLog_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Log{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output: %s", out)
	}
	if got := (Log{Level: "bogus"}).SlogLevel(); got != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want info", got)
	}
}
