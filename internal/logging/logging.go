// Package logging wires zap loggers backed by lumberjack-rotated files.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tccredit/portal/backend/internal/config"
)

var (
	appLogger     atomic.Pointer[zap.Logger]
	requestLogger atomic.Pointer[zap.Logger]
)

// L returns the application logger. Before Init it is a no-op logger, so
// packages can log unconditionally in tests.
func L() *zap.Logger {
	if l := appLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Requests returns the access logger used by the HTTP middleware.
func Requests() *zap.Logger {
	if l := requestLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Init builds the app, request and error sinks described by cfg and installs
// them as the package loggers. The returned func flushes buffered entries.
func Init(cfg config.LogConfig) (func(), error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", cfg.Dir, err)
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	appCore := zapcore.NewCore(encoder,
		zapcore.AddSync(rotating(cfg.Dir, "app.log", 100, 28)),
		level,
	)
	errorCore := zapcore.NewCore(encoder,
		zapcore.AddSync(rotating(cfg.Dir, "error.log", 100, 30)),
		zap.ErrorLevel,
	)
	requestCore := zapcore.NewCore(encoder,
		zapcore.AddSync(rotating(cfg.Dir, "request.log", 50, 7)),
		zap.InfoLevel,
	)

	cores := []zapcore.Core{appCore, errorCore}
	if cfg.Console {
		consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level))
	}

	app := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	req := zap.New(requestCore)

	appLogger.Store(app)
	requestLogger.Store(req)

	return func() {
		_ = app.Sync()
		_ = req.Sync()
	}, nil
}

// SetLogger replaces the application logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	appLogger.Store(l)
}

func rotating(dir, name string, maxSizeMB, maxAgeDays int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename: filepath.Join(dir, name),
		MaxSize:  maxSizeMB,
		MaxAge:   maxAgeDays,
		Compress: true,
	}
}

// LogDuration lets you do: defer logging.LogDuration(ctx, "Pipeline.Handle")()
func LogDuration(ctx context.Context, name string) func() {
	start := time.Now()
	requestID, _ := ctx.Value(requestIDKey{}).(string)

	return func() {
		fields := []zap.Field{
			zap.String("func", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}
		L().Debug("function timed", fields...)
	}
}

type requestIDKey struct{}

// WithRequestID stores the request id used by LogDuration.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
