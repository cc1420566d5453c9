package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   *slog.Logger
	minLevel = new(slog.LevelVar)
	out      io.Writer = os.Stderr
)

// initLogger lazily builds the process-wide logger writing colored
// key/value lines to stderr.
func initLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(tint.NewHandler(out, &tint.Options{
			Level:      minLevel,
			TimeFormat: time.DateTime,
			NoColor:    out != os.Stderr,
		}))
	}
	return logger
}

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	minLevel.Set(toSlog(l))
}

// SetOutput redirects log output. Color is only used on stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	logger = nil
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	initLogger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	initLogger().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{tint.Err(err)}, kv...)
	initLogger().Error(msg, extended...)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
