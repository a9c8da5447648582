package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/state"
)

// Config holds all environment-based configuration for notesync.
type Config struct {
	// Identity of the note owner. Supplied by whatever authenticated the
	// user; notesync never authenticates itself.
	OwnerID string `env:"NOTESYNC_OWNER_ID"`

	// Remote note service base URL and bearer token.
	RemoteURL   string `env:"NOTESYNC_REMOTE_URL"`
	RemoteToken string `env:"NOTESYNC_REMOTE_TOKEN"`

	// Location of the bbolt state database. Defaults to
	// ~/.notesync/state.db.
	StatePath string `env:"NOTESYNC_STATE_PATH"`

	SyncInterval  time.Duration `env:"NOTESYNC_SYNC_INTERVAL" envDefault:"30s"`
	ProbeInterval time.Duration `env:"NOTESYNC_PROBE_INTERVAL" envDefault:"10s"`
	RemoteTimeout time.Duration `env:"NOTESYNC_REMOTE_TIMEOUT" envDefault:"15s"`

	// Mode given to notes created without one.
	DefaultMode string `env:"NOTESYNC_DEFAULT_MODE" envDefault:"work"`

	// Change notifications. An empty URL disables them. ws://, wss://,
	// and nats:// are supported.
	NotifyURL        string   `env:"NOTESYNC_NOTIFY_URL"`
	NotifyRecipients []string `env:"NOTESYNC_NOTIFY_RECIPIENTS" envSeparator:","`

	// Listen address for `notesync serve`.
	ListenAddr string `env:"NOTESYNC_LISTEN_ADDR" envDefault:":8080"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the remote token to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.NotifyRecipients = splitRecipients(cfg.NotifyRecipients)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath == "" {
		path, err := state.DefaultPath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	absPath, err := filepath.Abs(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
	}

	cfg.StatePath = absPath

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("NOTESYNC_SYNC_INTERVAL must be positive")
	}

	if c.ProbeInterval <= 0 {
		return fmt.Errorf("NOTESYNC_PROBE_INTERVAL must be positive")
	}

	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("NOTESYNC_REMOTE_TIMEOUT must be positive")
	}

	if _, err := models.ParseMode(c.DefaultMode); err != nil {
		return fmt.Errorf("NOTESYNC_DEFAULT_MODE: %w", err)
	}

	if c.RemoteURL != "" {
		if err := checkURL(c.RemoteURL, "http", "https"); err != nil {
			return fmt.Errorf("NOTESYNC_REMOTE_URL: %w", err)
		}
	}

	if c.NotifyURL != "" {
		if err := checkURL(c.NotifyURL, "ws", "wss", "nats", "tls"); err != nil {
			return fmt.Errorf("NOTESYNC_NOTIFY_URL: %w", err)
		}
	}

	return nil
}

// RequireClient checks the settings every command that talks to the
// remote note service needs. `notesync serve` does not call it.
func (c *Config) RequireClient() error {
	if c.OwnerID == "" {
		return fmt.Errorf("NOTESYNC_OWNER_ID is required")
	}

	if c.RemoteURL == "" {
		return fmt.Errorf("NOTESYNC_REMOTE_URL is required")
	}

	return nil
}

// Mode returns the configured default mode. Load has already validated it.
func (c *Config) Mode() models.Mode {
	m, err := models.ParseMode(c.DefaultMode)
	if err != nil {
		return models.ModeWork
	}

	return m
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}

			return nil
		}
	}

	return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
}

// splitRecipients trims entries and drops empty and duplicate ones.
func splitRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))

	var out []string

	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}

		if _, dup := seen[r]; dup {
			continue
		}

		seen[r] = struct{}{}
		out = append(out, r)
	}

	return out
}
