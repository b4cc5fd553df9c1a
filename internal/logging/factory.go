package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the logger backend and output.
type Config struct {
	// Backend is "slog" (default) or "zerolog".
	Backend string
	// Level is debug, info, warn or error.
	Level string
	// Format is "text" or "json"; zerolog always writes JSON.
	Format string
	// File, when set, receives the log through a rotating writer instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New builds a Logger from cfg. The returned closer releases the log file
// and is a no-op for stderr.
func New(cfg Config) (Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out, closer = lj, lj
	}
	return NewWithWriter(cfg, out, closer)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg Config, out io.Writer, closer io.Closer) (Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "slog":
		opts := &slog.HandlerOptions{Level: level}
		var h slog.Handler
		if strings.EqualFold(cfg.Format, "json") {
			h = slog.NewJSONHandler(out, opts)
		} else {
			h = slog.NewTextHandler(out, opts)
		}
		return NewSlogLogger(slog.New(h)), closer, nil
	case "zerolog":
		zl := zerolog.New(out).Level(zerologLevel(level)).With().Timestamp().Logger()
		return NewZerologLogger(zl), closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
