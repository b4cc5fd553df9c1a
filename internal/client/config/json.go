package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gposync/internal/flagx"
	"github.com/dmitrijs2005/gposync/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Absent keys leave the
// current value alone.
type JsonConfig struct {
	ServerURL         *string         `json:"server_url"`
	Username          *string         `json:"username"`
	Password          *string         `json:"password"`
	Device            *string         `json:"device"`
	Auth              *string         `json:"auth"`
	DatabaseDSN       *string         `json:"database_dsn"`
	CheckpointBackend *string         `json:"checkpoint_backend"`
	PostgresDSN       *string         `json:"postgres_dsn"`
	S3                *S3Config       `json:"s3"`
	HTTPTimeout       *timex.Duration `json:"http_timeout"`
	UserAgent         *string         `json:"user_agent"`
	LogLevel          *string         `json:"log_level"`
	LogFormat         *string         `json:"log_format"`
	LogBackend        *string         `json:"log_backend"`
	LogFile           *string         `json:"log_file"`
	ConflictPolicy    *string         `json:"conflict_policy"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// parseJson overlays cfg with the file named by -c or -config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.Username, jc.Username)
	setString(&cfg.Password, jc.Password)
	setString(&cfg.Device, jc.Device)
	setString(&cfg.Auth, jc.Auth)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.CheckpointBackend, jc.CheckpointBackend)
	setString(&cfg.PostgresDSN, jc.PostgresDSN)
	setString(&cfg.UserAgent, jc.UserAgent)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.LogBackend, jc.LogBackend)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.ConflictPolicy, jc.ConflictPolicy)
	if jc.S3 != nil {
		cfg.S3 = *jc.S3
	}
	if jc.HTTPTimeout != nil {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	return nil
}
