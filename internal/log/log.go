package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu         sync.RWMutex
	sugar      *zap.SugaredLogger
	loggerOnce sync.Once
	atomicLvl  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the default stderr logger on first use.
func initLogger() {
	loggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = atomicLvl
		cfg.Encoding = "console"
		cfg.Sampling = nil
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}

		mu.Lock()
		if sugar == nil {
			sugar = l.Sugar()
		}
		mu.Unlock()
	})
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Use replaces the backing logger. Tests pass a zaptest logger here.
func Use(l *zap.Logger) {
	initLogger()
	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		atomicLvl.SetLevel(zapcore.DebugLevel)
	case LevelError:
		atomicLvl.SetLevel(zapcore.ErrorLevel)
	default:
		atomicLvl.SetLevel(zapcore.InfoLevel)
	}
}

// ParseLevel accepts debug/info/error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{zap.Error(err)}, kv...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = current().Sync()
}
