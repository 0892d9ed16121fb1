package logger

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured, leveled logger passed through request contexts.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
	NoLevel       LogLevel = ""
)

// silent sits above every charm level, so nothing is emitted.
const silent = charmlog.Level(1000)

var charmLevels = map[LogLevel]charmlog.Level{
	DebugLevel:    charmlog.DebugLevel,
	InfoLevel:     charmlog.InfoLevel,
	WarnLevel:     charmlog.WarnLevel,
	ErrorLevel:    charmlog.ErrorLevel,
	DisabledLevel: silent,
}

func (l LogLevel) String() string { return string(l) }

// ToCharmlogLevel maps l onto charm's scale. Unknown levels read as info.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	if level, ok := charmLevels[l]; ok {
		return level
	}
	return charmlog.InfoLevel
}

const defaultTimeFormat = "15:04:05"

type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

func DefaultConfig() *Config {
	return &Config{Level: InfoLevel, Output: os.Stdout, TimeFormat: defaultTimeFormat}
}

// TestConfig discards everything.
func TestConfig() *Config {
	return &Config{Level: DisabledLevel, Output: io.Discard, TimeFormat: defaultTimeFormat}
}

// charmLogger adapts charm's interface{} message parameter to Logger.
type charmLogger struct{ l *charmlog.Logger }

func (c charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }

func (c charmLogger) Info(msg string, keyvals ...any) { c.l.Info(msg, keyvals...) }

func (c charmLogger) Warn(msg string, keyvals ...any) { c.l.Warn(msg, keyvals...) }

func (c charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c charmLogger) With(keyvals ...any) Logger { return charmLogger{c.l.With(keyvals...)} }

func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           cfg.Level.ToCharmlogLevel(),
		ReportTimestamp: true,
		ReportCaller:    cfg.AddSource,
		TimeFormat:      cfg.TimeFormat,
	})
	if cfg.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	} else {
		l.SetStyles(getDefaultStyles())
	}
	return charmLogger{l}
}

func NewForTests() Logger {
	return NewLogger(TestConfig())
}

type holder struct{ Logger }

var fallback atomic.Pointer[holder]

// Init replaces the logger returned by GetDefault and used by the package-level helpers.
func Init(cfg *Config) {
	fallback.Store(&holder{NewLogger(cfg)})
}

func GetDefault() Logger {
	if h := fallback.Load(); h != nil {
		return h.Logger
	}
	fallback.CompareAndSwap(nil, &holder{NewLogger(DefaultConfig())})
	return fallback.Load().Logger
}

type ContextKey string

const LoggerCtxKey ContextKey = "logger"

func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the logger carried by ctx, or the default one.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
			return l
		}
	}
	return GetDefault()
}

func Debug(msg string, keyvals ...any) { GetDefault().Debug(msg, keyvals...) }

func Info(msg string, keyvals ...any) { GetDefault().Info(msg, keyvals...) }

func Warn(msg string, keyvals ...any) { GetDefault().Warn(msg, keyvals...) }

func Error(msg string, keyvals ...any) { GetDefault().Error(msg, keyvals...) }
