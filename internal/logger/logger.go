package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for the host log.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 14

	// CurrentFile is the name of the live log inside Config.Dir.
	CurrentFile = "current.log"
)

// Config describes the process-wide diagnostic sink.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool   // mirror records to stderr with colored levels
	Level      string // debug, info, warn, error
}

// Sink owns the rotating file behind a *slog.Logger.
type Sink struct {
	*slog.Logger
	file *lj.Logger
	path string
}

// Path returns the live log file path, or "" when logging to stderr only.
func (s *Sink) Path() string { return s.path }

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// New builds the sink. A non-empty previous current.log is rolled over once,
// so every host run starts with a fresh file and the older run is kept
// (compressed when Compress is set) as a lumberjack backup.
func New(cfg Config) (*Sink, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Dir == "" {
		h := NewColorTextHandler(os.Stderr, opts)
		return &Sink{Logger: slog.New(h)}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.Dir, CurrentFile)
	file := &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		if err := file.Rotate(); err != nil {
			return nil, err
		}
	}
	var h slog.Handler = slog.NewTextHandler(file, opts)
	if cfg.Console {
		h = fanout{h, NewColorTextHandler(os.Stderr, opts)}
	}
	return &Sink{Logger: slog.New(h), file: file, path: path}, nil
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
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

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// fanout forwards each record to every handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
