package utils

import (
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/rs/zerolog"
	"github.com/vgarvardt/gue/v5/adapter"
)

// GueLogAdapter writes gue pool logs to goapp.Log.
// gue reports every poll at info level, so its levels are shifted one step down
type GueLogAdapter struct {
	pool   string
	fields []adapter.Field
}

// NewGueLoggerAdapter creates adapter, pool is added to every record
func NewGueLoggerAdapter(pool string) *GueLogAdapter {
	return &GueLogAdapter{pool: pool}
}

// Debug implements adapter.Logger
func (l *GueLogAdapter) Debug(msg string, fields ...adapter.Field) {
	l.do(goapp.Log.Trace(), fields...).Msg(msg)
}

// Info implements adapter.Logger
func (l *GueLogAdapter) Info(msg string, fields ...adapter.Field) {
	l.do(goapp.Log.Debug(), fields...).Msg(msg)
}

// Error implements adapter.Logger
func (l *GueLogAdapter) Error(msg string, fields ...adapter.Field) {
	l.do(goapp.Log.Error(), fields...).Msg(msg)
}

// With implements adapter.Logger
func (l *GueLogAdapter) With(fields ...adapter.Field) adapter.Logger {
	all := make([]adapter.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	return &GueLogAdapter{pool: l.pool, fields: all}
}

func (l *GueLogAdapter) do(le *zerolog.Event, fields ...adapter.Field) *zerolog.Event {
	if l.pool != "" {
		le = le.Str("pool", l.pool)
	}
	for _, f := range l.fields {
		le = addField(le, f)
	}
	for _, f := range fields {
		le = addField(le, f)
	}
	return le
}

func addField(le *zerolog.Event, f adapter.Field) *zerolog.Event {
	if err, ok := f.Value.(error); ok {
		return le.AnErr(f.Key, err)
	}
	return le.Interface(f.Key, f.Value)
}
