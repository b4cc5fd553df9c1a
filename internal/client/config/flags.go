package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gposync/internal/flagx"
)

// Flags lists every configuration flag; all of them take a value.
var Flags = []string{
	"-s", "-u", "-p", "-d", "-auth",
	"-db", "-checkpoints", "-pg",
	"-s3-bucket", "-s3-prefix", "-s3-region", "-s3-endpoint", "-s3-access-key", "-s3-secret-key",
	"-timeout", "-user-agent",
	"-log-level", "-log-format", "-log-backend", "-log-file",
	"-policy",
}

// parseFlags applies the configuration flags in args to cfg and returns the
// remaining arguments.
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("gpo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "gpodder server URL")
	fs.StringVar(&cfg.Username, "u", cfg.Username, "account name")
	fs.StringVar(&cfg.Password, "p", cfg.Password, "password (prompted when empty)")
	fs.StringVar(&cfg.Device, "d", cfg.Device, "device id")
	fs.StringVar(&cfg.Auth, "auth", cfg.Auth, "basic or session")
	fs.StringVar(&cfg.DatabaseDSN, "db", cfg.DatabaseDSN, "SQLite state database")
	fs.StringVar(&cfg.CheckpointBackend, "checkpoints", cfg.CheckpointBackend, "checkpoint backend: memory, sqlite, postgres, s3")
	fs.StringVar(&cfg.PostgresDSN, "pg", cfg.PostgresDSN, "PostgreSQL DSN of the postgres checkpoint backend")
	fs.StringVar(&cfg.S3.Bucket, "s3-bucket", cfg.S3.Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3.Prefix, "s3-prefix", cfg.S3.Prefix, "S3 key prefix")
	fs.StringVar(&cfg.S3.Region, "s3-region", cfg.S3.Region, "S3 region")
	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", cfg.S3.Endpoint, "S3-compatible endpoint URL")
	fs.StringVar(&cfg.S3.AccessKey, "s3-access-key", cfg.S3.AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3.SecretKey, "s3-secret-key", cfg.S3.SecretKey, "S3 secret key")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP request timeout")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.StringVar(&cfg.LogBackend, "log-backend", cfg.LogBackend, "slog or zerolog")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotated log file instead of stderr")
	fs.StringVar(&cfg.ConflictPolicy, "policy", cfg.ConflictPolicy, "server-wins or local-wins")

	if err := fs.Parse(flagx.FilterArgs(args, Flags)); err != nil {
		return nil, err
	}
	return flagx.Positional(args, append(Flags, flagx.ConfigFileFlags...)), nil
}
