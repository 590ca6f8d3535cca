package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactSecretsBlanksCredentialKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactSecrets}))
	log.Info("wallet_imported",
		"private_key", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"wallet_credential", "abc",
		"token_address", "0xae13d989dac2f0debff460ac112a837c89baa7cd",
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["private_key"] != Redacted {
		t.Fatalf("expected private_key to be redacted, got %v", entry["private_key"])
	}
	if entry["wallet_credential"] != Redacted {
		t.Fatalf("expected wallet_credential to be redacted, got %v", entry["wallet_credential"])
	}
	if entry["token_address"] != "0xae13d989dac2f0debff460ac112a837c89baa7cd" {
		t.Fatalf("token address should be kept, got %v", entry["token_address"])
	}
}

func TestRotatingFileRotatesOnSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	w, err := newRotatingFile(path, 0, 2, 0)
	if err != nil {
		t.Fatalf("new rotating file: %v", err)
	}
	w.maxSize = 16
	t.Cleanup(func() { _ = w.Close() })

	for _, line := range []string{"0123456789\n", "abcdefghij\n", "klmnopqrst\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if strings.TrimSpace(string(current)) != "klmnopqrst" {
		t.Fatalf("unexpected current file %q", current)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected audit log mode %v", info.Mode().Perm())
	}
}

func TestInitRoutesAppAndAuditStreams(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "logs", "app.log")
	auditPath := filepath.Join(dir, "audit.log")

	if err := Init(Config{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{appPath},
		Audit:       AuditConfig{Enabled: true, Path: auditPath},
	}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = Sync() })

	Named("swap").Info("dropped below level")
	Named("swap").Warn("quote stale", "network", "bsc-testnet")
	Audit().Info("tx_broadcast", "hash", "0x01", "private_key", "abc")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	app, err := os.ReadFile(appPath)
	if err != nil {
		t.Fatalf("read app log: %v", err)
	}
	if strings.Contains(string(app), "dropped below level") || !strings.Contains(string(app), `"component":"swap"`) {
		t.Fatalf("unexpected app log %s", app)
	}
	audit, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(audit), "tx_broadcast") || strings.Contains(string(audit), `"abc"`) {
		t.Fatalf("unexpected audit log %s", audit)
	}
}

func TestInitRejectsAuditWithoutPath(t *testing.T) {
	if err := Init(Config{Audit: AuditConfig{Enabled: true}}); err == nil {
		t.Fatal("expected missing audit path to fail")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
