// Package log is a thin structured-logging facade over zap. Components
// receive a Log and attach their own scope with With; nothing in the
// repository talks to zap directly.
package log

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value any
}

func Any(key string, val any) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field      { return Field{Key: key, Value: val} }
func Int(key string, val int) Field        { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field    { return Field{Key: key, Value: val} }
func String(key string, val string) Field  { return Field{Key: key, Value: val} }
func Time(key string, val time.Time) Field { return Field{Key: key, Value: val} }

func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }

func Error(val error) Field { return Field{Key: "error", Value: val} }

var _ Log = (*Logger)(nil)

// Logger is the zap-backed implementation, encoding JSON to stderr.
type Logger struct {
	zapLogger *zap.Logger
}

// New builds a production logger at the given level. Unknown level strings
// fall back to info.
func New(level string) *Logger {
	zapLevel := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		zapLevel = parsed
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	zapLogger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{zapLogger: zapLogger}
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zapLogger: zap.NewNop()}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.zapLogger.Debug(msg, toZapFields(fields...)...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.zapLogger.Info(msg, toZapFields(fields...)...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.zapLogger.Warn(msg, toZapFields(fields...)...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.zapLogger.Error(msg, toZapFields(fields...)...)
}

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zapLogger: l.zapLogger.With(toZapFields(fields...)...)}
}

// Sync flushes buffered entries. Called on shutdown.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

func toZapFields(fields ...Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zapFields = append(zapFields, zap.String(f.Key, v))
		case bool:
			zapFields = append(zapFields, zap.Bool(f.Key, v))
		case int:
			zapFields = append(zapFields, zap.Int(f.Key, v))
		case int64:
			zapFields = append(zapFields, zap.Int64(f.Key, v))
		case time.Time:
			zapFields = append(zapFields, zap.Time(f.Key, v))
		case time.Duration:
			zapFields = append(zapFields, zap.Duration(f.Key, v))
		case error:
			zapFields = append(zapFields, zap.NamedError(f.Key, v))
		default:
			zapFields = append(zapFields, zap.Any(f.Key, v))
		}
	}
	return zapFields
}
