package logger

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	Logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// ZapLogger wraps zap.Logger behind a zerolog-compatible chained API.
type ZapLogger struct {
	*zap.Logger
}

// ZapEvent accumulates fields for a single log line.
type ZapEvent struct {
	logger *zap.Logger
	level  zapcore.Level
	fields []zap.Field
}

func newEvent(logger *zap.Logger, lvl zapcore.Level) *ZapEvent {
	return &ZapEvent{logger: logger, level: lvl}
}

// Err adds an error field
func (e *ZapEvent) Err(err error) *ZapEvent {
	e.fields = append(e.fields, zap.Error(err))
	return e
}

// Str adds a string field
func (e *ZapEvent) Str(key, val string) *ZapEvent {
	e.fields = append(e.fields, zap.String(key, val))
	return e
}

// Bool adds a boolean field
func (e *ZapEvent) Bool(key string, val bool) *ZapEvent {
	e.fields = append(e.fields, zap.Bool(key, val))
	return e
}

// Int adds an int field
func (e *ZapEvent) Int(key string, val int) *ZapEvent {
	e.fields = append(e.fields, zap.Int(key, val))
	return e
}

// Int64 adds an int64 field
func (e *ZapEvent) Int64(key string, val int64) *ZapEvent {
	e.fields = append(e.fields, zap.Int64(key, val))
	return e
}

// Dur adds a duration field
func (e *ZapEvent) Dur(key string, val interface{}) *ZapEvent {
	e.fields = append(e.fields, zap.Any(key, val))
	return e
}

// Interface adds an arbitrary field
func (e *ZapEvent) Interface(key string, val interface{}) *ZapEvent {
	e.fields = append(e.fields, zap.Any(key, val))
	return e
}

// Msg logs the message with accumulated fields
func (e *ZapEvent) Msg(msg string) {
	switch e.level {
	case zapcore.DebugLevel:
		e.logger.Debug(msg, e.fields...)
	case zapcore.InfoLevel:
		e.logger.Info(msg, e.fields...)
	case zapcore.WarnLevel:
		e.logger.Warn(msg, e.fields...)
	case zapcore.ErrorLevel:
		e.logger.Error(msg, e.fields...)
	case zapcore.FatalLevel:
		e.logger.Fatal(msg, e.fields...)
	}
}

func (l *ZapLogger) Debug() *ZapEvent { return newEvent(l.Logger, zapcore.DebugLevel) }
func (l *ZapLogger) Info() *ZapEvent  { return newEvent(l.Logger, zapcore.InfoLevel) }
func (l *ZapLogger) Warn() *ZapEvent  { return newEvent(l.Logger, zapcore.WarnLevel) }
func (l *ZapLogger) Error() *ZapEvent { return newEvent(l.Logger, zapcore.ErrorLevel) }
func (l *ZapLogger) Fatal() *ZapEvent { return newEvent(l.Logger, zapcore.FatalLevel) }

// Init builds the JSON stdout logger. Additional sinks (e.g. a Loki pusher)
// can be attached with AddSink before or after Init.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	Logger = build(os.Stdout)
	Logger.Info("Logger initialized", zap.String("level", level.Level().String()))
}

func build(sinks ...zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.EpochTimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.NewMultiWriteSyncer(sinks...),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// AddSink rebuilds the logger with an extra write target alongside stdout.
func AddSink(w zapcore.WriteSyncer) {
	mu.Lock()
	defer mu.Unlock()
	Logger = build(zapcore.AddSync(os.Stdout), w)
}

func base() *zap.Logger {
	mu.RLock()
	l := Logger
	mu.RUnlock()
	if l == nil {
		// Not initialized (tests, early startup); stay silent rather than panic.
		return zap.NewNop()
	}
	return l
}

func Get() *ZapLogger {
	return &ZapLogger{Logger: base()}
}

// WithContext returns a logger carrying trace_id/span_id when the context
// holds a valid span, so log lines correlate with traces.
func WithContext(ctx context.Context) *ZapLogger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return &ZapLogger{Logger: base().With(
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)}
	}
	return &ZapLogger{Logger: base()}
}

// Ctx is shorthand for WithContext.
func Ctx(ctx context.Context) *ZapLogger {
	return WithContext(ctx)
}

// SetLogLevel adjusts the level of the running logger in place.
func SetLogLevel(lvl string) {
	switch lvl {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		base().Warn("Unknown log level, defaulting to INFO", zap.String("level", lvl))
		level.SetLevel(zap.InfoLevel)
	}
}

// Shutdown flushes buffered log entries.
func Shutdown() error {
	mu.RLock()
	defer mu.RUnlock()
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}
