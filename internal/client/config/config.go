package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/transport"
)

// Config holds runtime settings of the gpo CLI.
type Config struct {
	ServerURL string
	Username  string
	Password  string
	Device    string
	// Auth is "basic" or "session".
	Auth string

	// DatabaseDSN is the SQLite state database; empty keeps state in memory.
	DatabaseDSN string
	// CheckpointBackend is memory, sqlite, postgres or s3; empty follows DatabaseDSN.
	CheckpointBackend string
	PostgresDSN       string
	S3                S3Config

	HTTPTimeout time.Duration
	UserAgent   string

	LogLevel   string
	LogFormat  string
	LogBackend string
	LogFile    string

	// ConflictPolicy is "server-wins" or "local-wins".
	ConflictPolicy string
}

// S3Config addresses the bucket of the s3 checkpoint backend.
type S3Config struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = transport.DefaultBaseURL
	c.Device = "gpo"
	c.Auth = "basic"
	c.DatabaseDSN = "gpo.db"
	c.HTTPTimeout = transport.DefaultTimeout
	c.LogLevel = "warn"
	c.LogFormat = "text"
	c.LogBackend = "slog"
	c.ConflictPolicy = "server-wins"
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then flags. Later sources win. It also returns the arguments
// that are not configuration flags, i.e. the CLI command.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, nil, err
	}
	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Auth {
	case "basic", "session":
	default:
		return nil, nil, fmt.Errorf("invalid auth mode %q: want basic or session", cfg.Auth)
	}
	return cfg, rest, nil
}
