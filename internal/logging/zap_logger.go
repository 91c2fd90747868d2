package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger backs Logger with a zap.Logger. It is the default logger for
// the engine; tests typically use a no-op Logger instead.
type ZapLogger struct {
	z *zap.Logger
}

// NewZapLogger builds a ZapLogger at the given level ("DEBUG", "INFO",
// "WARN", "ERROR"). An unrecognized level defaults to INFO.
func NewZapLogger(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelToZap(level))

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{z: z}, nil
}

func levelToZap(level string) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) fields(e Event) []zap.Field {
	fields := make([]zap.Field, 0, len(e.Metadata))
	for k, v := range e.Metadata {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func (l *ZapLogger) Debug(e Event) { l.z.Debug(e.Message, l.fields(e)...) }
func (l *ZapLogger) Info(e Event)  { l.z.Info(e.Message, l.fields(e)...) }
func (l *ZapLogger) Warn(e Event)  { l.z.Warn(e.Message, l.fields(e)...) }
func (l *ZapLogger) Error(e Event) { l.z.Error(e.Message, l.fields(e)...) }

// Sync flushes any buffered log entries, matching zap's own shutdown
// convention.
func (l *ZapLogger) Sync() error { return l.z.Sync() }

// Nop is a Logger that discards every event, for tests that don't care
// about log output.
type Nop struct{}

func (Nop) Debug(Event) {}
func (Nop) Info(Event)  {}
func (Nop) Warn(Event)  {}
func (Nop) Error(Event) {}
