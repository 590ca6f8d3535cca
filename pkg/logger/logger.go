// Package logger holds the process-wide slog loggers: the application logger
// and the audit logger that records broadcasts and API access decisions.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes how the application logger should behave.
type Config struct {
	Level string
	// Format is "json" or "text"; anything else falls back to text.
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig controls audit log output behaviour. A disabled audit log
// shares the application outputs.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type sinks struct {
	app     *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
}

var (
	mu    sync.RWMutex
	cur   *sinks
	level = new(slog.LevelVar)
)

// Init (re)configures the global loggers. Outputs opened by a previous Init
// are closed once the new ones are in place.
func Init(cfg Config) error {
	level.Set(parseLevel(cfg.Level))
	next := &sinks{}

	appOut, err := next.open(cfg.OutputPaths)
	if err != nil {
		next.close()
		return err
	}
	next.app = slog.New(newHandler(cfg.Format, appOut, &slog.HandlerOptions{
		Level:       level,
		AddSource:   level.Level() <= slog.LevelDebug,
		ReplaceAttr: redactSecrets,
	}))

	next.audit = next.app.With(slog.String("stream", "audit"))
	if cfg.Audit.Enabled {
		w, err := openAudit(cfg.Audit)
		if err != nil {
			next.close()
			return err
		}
		next.closers = append(next.closers, w)
		next.audit = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{ReplaceAttr: redactSecrets}))
	}

	mu.Lock()
	prev := cur
	cur = next
	mu.Unlock()

	if prev != nil {
		return prev.close()
	}
	return nil
}

// SetLevel changes the application log level at runtime.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

func (s *sinks) open(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	for _, p := range paths {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "", "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("创建日志目录失败: %w", err)
			}
			f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("打开日志文件 %s 失败: %w", p, err)
			}
			s.closers = append(s.closers, f)
			writers = append(writers, f)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (s *sinks) close() error {
	var err error
	for _, c := range s.closers {
		err = errors.Join(err, c.Close())
	}
	s.closers = nil
	return err
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func openAudit(cfg AuditConfig) (*rotatingFile, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("审计日志已启用但未配置路径")
	}
	return newRotatingFile(cfg.Path, orDefault(cfg.MaxSizeMB, 100), orDefault(cfg.MaxBackups, 7), orDefault(cfg.MaxAgeDays, 30))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func current() *sinks {
	mu.RLock()
	s := cur
	mu.RUnlock()
	if s != nil {
		return s
	}
	if err := Init(Config{}); err != nil {
		return &sinks{app: slog.Default(), audit: slog.Default()}
	}
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// L returns the application logger, initialising a text logger on stdout
// when Init was never called.
func L() *slog.Logger { return current().app }

// Audit returns the audit logger.
func Audit() *slog.Logger { return current().audit }

// Named returns a child logger tagged with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// Sync closes file outputs. Loggers keep working on stdout afterwards.
func Sync() error {
	mu.Lock()
	s := cur
	cur = nil
	mu.Unlock()
	if s == nil {
		return nil
	}
	return s.close()
}

// Redacted is the placeholder written in place of secret values.
const Redacted = "[REDACTED]"

var secretKeys = []string{"private_key", "privatekey", "credential", "secret", "password", "access_token", "auth_token", "authorization"}

// redactSecrets blanks attributes whose key names a secret, whatever the value type.
func redactSecrets(_ []string, attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)
	for _, secret := range secretKeys {
		if strings.Contains(key, secret) {
			return slog.String(attr.Key, Redacted)
		}
	}
	return attr
}
