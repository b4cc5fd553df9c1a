package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "https://gpodder.net/", c.ServerURL)
	assert.Equal(t, "gpo", c.Device)
	assert.Equal(t, "basic", c.Auth)
	assert.Equal(t, "gpo.db", c.DatabaseDSN)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout)
	assert.Equal(t, "server-wins", c.ConflictPolicy)
}

func TestLoadConfig_NoArgsGivesDefaults(t *testing.T) {
	cfg, rest, err := LoadConfig(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Empty(t, rest)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want, *cfg)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"username":     "alice",
		"device":       "laptop",
		"http_timeout": "5s",
	})

	cfg, rest, err := LoadConfig([]string{"-c", path, "-d", "phone", "sync"})
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "phone", cfg.Device)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{"sync"}, rest)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, _, err := LoadConfig([]string{"-auth", "oauth"})
	require.ErrorContains(t, err, "invalid auth mode")

	_, _, err = LoadConfig([]string{"-timeout", "soon"})
	require.Error(t, err)

	_, _, err = LoadConfig([]string{"-c", "/does/not/exist.json"})
	require.ErrorContains(t, err, "read config")
}
