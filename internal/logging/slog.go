package logging

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger. Values go through fieldValue like the
// zerolog backend, so errors and Stringers print the same on both.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelDebug, msg, args)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelInfo, msg, args)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelWarn, msg, args)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelError, msg, args)
}

func (s *SlogLogger) With(args ...any) Logger {
	as := attrs(args)
	kv := make([]any, len(as))
	for i, a := range as {
		kv[i] = a
	}
	return &SlogLogger{l: s.l.With(kv...)}
}

// log skips argument conversion entirely below the handler's level; the
// transport logs every request at debug.
func (s *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.LogAttrs(ctx, level, msg, attrs(args)...)
}

func attrs(args []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		if a, ok := args[i].(slog.Attr); ok {
			out = append(out, a)
			continue
		}
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, slog.Any(badKey, args[i]))
			continue
		}
		out = append(out, slog.Any(key, fieldValue(args[i+1])))
		i++
	}
	return out
}
