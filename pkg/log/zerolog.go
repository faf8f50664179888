package log

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// zerologLogger implements Logger on top of a zerolog.Logger.
type zerologLogger struct {
	zl zerolog.Logger
}

// zerologProvider is the default LoggerProvider backed by zerolog.
type zerologProvider struct {
	mu    sync.RWMutex
	level zerolog.Level
	out   zerolog.Logger
}

var defaultProvider = newZerologProvider()

func newZerologProvider() *zerologProvider {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &zerologProvider{
		level: zerolog.InfoLevel,
		out:   zl,
	}
}

// GetLogger returns the default logger instance.
func GetLogger() Logger {
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name,
// e.g. "forest.ensemble" or "tuning.tuner".
func GetLoggerWithName(name string) Logger {
	return defaultProvider.GetLoggerWithName(name)
}

// SetLevel sets the minimum level emitted by the default provider.
func SetLevel(level Level) {
	defaultProvider.SetLevel(level)
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.out.Level(p.level)}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	zl := p.out.Level(p.level).With().Str(ComponentKey, name).Logger()
	return &zerologLogger{zl: zl}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = toZerologLevel(level)
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

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields...)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields...)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields...)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields...)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for k, v := range pairs(fields) {
		ctx = ctx.Interface(k, v)
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// emit attaches structured fields to the event. An error passed as the first
// field is recorded under the standard error key with its type marshaled by
// zerolog when the error implements LogObjectMarshaler.
func (l *zerologLogger) emit(e *zerolog.Event, msg string, fields ...any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = e.AnErr(ErrAttrKey, err)
			if obj, ok := err.(zerolog.LogObjectMarshaler); ok {
				e = e.Object("error_detail", obj)
			}
			fields = fields[1:]
		}
	}
	for k, v := range pairs(fields) {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// pairs converts a flat key/value list into a map, stringifying odd keys.
// A trailing unmatched key is recorded with a nil value.
func pairs(fields []any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(fields)/2+1)
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		if i+1 < len(fields) {
			m[key] = fields[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}
