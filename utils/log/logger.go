package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const sessionKey ctxKey = "session_id"

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// Setup replaces the package logger. When file is set, entries are also
// written as JSON to a size-rotated file.
func Setup(debug bool, file string) error {
	var (
		base *zap.Logger
		err  error
	)
	if debug {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	if file != "" {
		level := zapcore.InfoLevel
		if debug {
			level = zapcore.DebugLevel
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), rotatingFile(file), level)
		base = base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	logger = base
	return nil
}

// Sync flushes buffered entries.
func Sync() error {
	return logger.Sync()
}

// ContextWithSession tags ctx so that WithCtx adds the session id.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v, ok := ctx.Value(sessionKey).(string); ok && v != "" {
		fields = append(fields, zap.String("session_id", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// SetupFileOnly keeps the console clean for interactive use: entries go to
// the rotated file only, or nowhere when file is empty.
func SetupFileOnly(debug bool, file string) error {
	if file == "" {
		logger = zap.NewNop()
		return nil
	}
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), rotatingFile(file), level)
	logger = zap.New(core)
	return nil
}

func rotatingFile(file string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
}
