package logging

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestZerologLogger_WritesJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := NewWithWriter(Config{Backend: "zerolog", Level: "debug"}, &buf, nopCloser{})
	require.NoError(t, err)

	log.With("device", "phone").Info(context.Background(), "sync finished", "checkpoint", 42, "err", errors.New("boom"))

	line := buf.Bytes()
	assert.Equal(t, "info", gjson.GetBytes(line, "level").String())
	assert.Equal(t, "sync finished", gjson.GetBytes(line, "message").String())
	assert.Equal(t, "phone", gjson.GetBytes(line, "device").String())
	assert.Equal(t, int64(42), gjson.GetBytes(line, "checkpoint").Int())
	assert.Equal(t, "boom", gjson.GetBytes(line, "err").String())
}

func TestZerologLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := NewWithWriter(Config{Backend: "zerolog", Level: "warn"}, &buf, nopCloser{})
	require.NoError(t, err)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	log.Warn(context.Background(), "shown", "dangling")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "!BADKEY")
}

func TestNew_SlogJSONAndErrors(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := NewWithWriter(Config{Format: "json"}, &buf, nopCloser{})
	require.NoError(t, err)
	log.Info(context.Background(), "hello", "k", "v")
	assert.Equal(t, "v", gjson.Get(buf.String(), "k").String())

	_, _, err = NewWithWriter(Config{Backend: "logrus"}, &buf, nopCloser{})
	require.Error(t, err)

	_, _, err = NewWithWriter(Config{Level: "loud"}, &buf, nopCloser{})
	require.Error(t, err)
}

func TestNew_FileOutputRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpo.log")
	log, closer, err := New(Config{File: path, Level: "info", MaxSizeMB: 1})
	require.NoError(t, err)
	log.Info(context.Background(), "to file")
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}

func TestNop_DiscardsEverything(t *testing.T) {
	l := Nop()
	l.Debug(context.Background(), "x")
	l.With("a", 1).Error(context.Background(), "y")
}
