package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	estimoErrors "github.com/propval/estimo/pkg/errors"
)

// ZerologProvider is the default LoggerProvider. All loggers it hands out
// share one zerolog.Logger and one level.
type ZerologProvider struct {
	mu    sync.RWMutex
	base  zerolog.Logger
	level Level
}

// NewZerologProvider creates a provider writing JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{
		base:  zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level)),
		level: level,
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel. Loggers obtained earlier keep
// their level.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	p.base = p.base.Level(toZerologLevel(level))
}

// warn routes library warnings into the structured log.
func (p *ZerologProvider) warn(w error) {
	p.mu.RLock()
	base := p.base
	p.mu.RUnlock()

	ev := base.Warn()
	if m, ok := w.(zerolog.LogObjectMarshaler); ok {
		ev = ev.EmbedObject(m)
	}
	ev.Msg(w.Error())
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { emit(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	zlevel := toZerologLevel(level)
	return zlevel >= l.zl.GetLevel() && zlevel >= zerolog.GlobalLevel()
}

// emit is a no-op when ev is nil (level disabled).
func emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	ev.Fields(normalizeFields(fields)).Msg(msg)
}

// normalizeFields turns alternating key/value pairs into a map; errors are
// rendered as their message so JSON output stays readable.
func normalizeFields(fields []any) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = fields[i+1]
	}
	return out
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider
)

func init() {
	p := NewZerologProvider(os.Stderr, LevelWarn)
	provider = p
	estimoErrors.SetZerologWarnFunc(p.warn)
}

// SetProvider replaces the global provider. Library warnings are routed to
// the new provider when it is a *ZerologProvider, otherwise to its default
// logger.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
	if zp, ok := p.(*ZerologProvider); ok {
		estimoErrors.SetZerologWarnFunc(zp.warn)
		return
	}
	estimoErrors.SetZerologWarnFunc(func(w error) {
		p.GetLogger().Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger from the global provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the level of the global provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}
