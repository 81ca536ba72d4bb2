package labjack

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Подсистемы драйвера для поля component в журнале.
type component string

const (
	componentTransport component = "transport"
	componentRegistry  component = "registry"
	componentPipeline  component = "pipeline"
	componentPortA     component = "portA"
	componentPortB     component = "portB"
	componentPortC     component = "portC"
	componentDriver    component = "driver"
	componentWatcher   component = "watcher"
)

var (
	logger   *slog.Logger
	logLevel = new(slog.LevelVar)
	logMutex sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelWarn)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

//SetLogger заменяет журнал драйвера.
func SetLogger(l *slog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logger = l
}

//SetLogLevel задаёт минимальный уровень журнала по умолчанию.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

//NewLogger создаёт журнал по настройкам: формат text или json, уровень debug/info/warn/error.
func NewLogger(w io.Writer, cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

//ParseLevel переводит строку в slog.Level, по умолчанию info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logger
}

func logDebug(c component, msg string, args ...any) {
	current().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

func logInfo(c component, msg string, args ...any) {
	current().Info(msg, append([]any{"component", string(c)}, args...)...)
}

func logWarn(c component, msg string, args ...any) {
	current().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

func logError(c component, msg string, args ...any) {
	current().Error(msg, append([]any{"component", string(c)}, args...)...)
}
