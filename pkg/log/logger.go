package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger configures the global provider.
//
// format "json" (default) uses zerolog, "console" uses zerolog's
// human-readable writer, and "slog" uses a log/slog JSON
// handler wrapped by ErrFmtHandler so cockroachdb stack traces are attached
// to records carrying an "error" attribute.
func SetupLogger(w io.Writer, format, loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "", "json":
		SetProvider(NewZerologProvider(w, level))
	case "console":
		SetProvider(NewZerologProvider(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}, level))
	case "slog":
		ops := slog.HandlerOptions{
			AddSource: true,
			Level:     slog.Level(level),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr.Key = "severity"
				case slog.MessageKey:
					attr.Key = "message"
				}
				return attr
			},
		}
		handler := WrapByErrFmtHandler(slog.NewJSONHandler(w, &ops))
		SetProvider(&slogProvider{logger: slog.New(handler), level: level})
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	return nil
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

type slogProvider struct {
	logger *slog.Logger
	level  Level
}

func (p *slogProvider) GetLogger() Logger {
	return &slogLogger{l: p.logger, min: &p.level}
}

func (p *slogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{l: p.logger.With(ComponentKey, name), min: &p.level}
}

func (p *slogProvider) SetLevel(level Level) { p.level = level }

type slogLogger struct {
	l   *slog.Logger
	min *Level
}

func (s *slogLogger) log(level Level, msg string, fields []any) {
	if level < *s.min {
		return
	}
	args := make([]any, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		if err, ok := fields[i+1].(error); ok && fmt.Sprint(fields[i]) == ErrAttrKey {
			args = append(args, ErrAttr(err))
			continue
		}
		args = append(args, fields[i], fields[i+1])
	}
	s.l.Log(context.Background(), slog.Level(level), msg, args...)
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.log(LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.log(LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.log(LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...any) { s.log(LevelError, msg, fields) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...), min: s.min}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return level >= *s.min && s.l.Enabled(ctx, slog.Level(level))
}
