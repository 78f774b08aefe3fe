package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type config struct {
	level     slog.Level
	json      bool
	output    io.Writer
	attrs     []slog.Attr
	source    bool
	defaulted bool
}

// Option configures the logger created by New.
type Option func(*config)

// WithDevelopment configures text output at debug level with the
// application name attached to every record.
func WithDevelopment(appName string) Option {
	return func(c *config) {
		c.level = slog.LevelDebug
		c.json = false
		c.output = os.Stdout
		if appName != "" {
			c.attrs = append(c.attrs, slog.String("app", appName))
		}
	}
}

// WithProduction configures JSON output at info level with the
// application name attached to every record.
func WithProduction(appName string) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		c.json = true
		c.output = os.Stdout
		if appName != "" {
			c.attrs = append(c.attrs, slog.String("app", appName))
		}
	}
}

// WithLevel overrides the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithJSONFormatter forces JSON output regardless of environment preset.
func WithJSONFormatter() Option {
	return func(c *config) {
		c.json = true
	}
}

// WithOutput redirects log output, typically to a buffer in tests.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithAttr attaches attributes to every record produced by the logger.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithSource adds the source file and line to each record.
func WithSource() Option {
	return func(c *config) {
		c.source = true
	}
}

// SetAsDefault installs the created logger as slog's process default.
func SetAsDefault() Option {
	return func(c *config) {
		c.defaulted = true
	}
}

// New creates a slog.Logger from the provided options.
// Without options the logger discards everything, which keeps library
// code quiet unless the caller opts in.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		output: io.Discard,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     cfg.level,
		AddSource: cfg.source,
	}

	var handler slog.Handler
	if cfg.json {
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	}
	if len(cfg.attrs) > 0 {
		handler = handler.WithAttrs(cfg.attrs)
	}

	log := slog.New(handler)
	if cfg.defaulted {
		slog.SetDefault(log)
	}
	return log
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
