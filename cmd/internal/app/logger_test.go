package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := parseLogLevel(tc.in); got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestRedactAttr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key      string
		redacted bool
	}{
		{key: "password", redacted: true},
		{key: "Access_Token", redacted: true},
		{key: "refresh_token", redacted: true},
		{key: "client_secret", redacted: true},
		{key: "account_id", redacted: false},
		{key: "code_prefix", redacted: false},
	}

	for _, tc := range cases {
		got := redactAttr(nil, slog.String(tc.key, "value"))
		if (got.Value.String() == "[redacted]") != tc.redacted {
			t.Fatalf("redactAttr(%q)=%q redacted=%v", tc.key, got.Value.String(), tc.redacted)
		}
	}
}

func TestNewLogger_JSONRedactsSecrets(t *testing.T) {
	// NewLogger replaces slog's default logger.
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := NewLogger("info", "json", &buf)
	log.Info("auth.signin", "account_id", "01J", "password", "Abcd1234!")
	log.Debug("hidden")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\n") {
		t.Fatalf("expected one record at info level, got %q", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, line)
	}
	if rec["msg"] != "auth.signin" || rec["account_id"] != "01J" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["password"] != "[redacted]" {
		t.Fatalf("password=%v want [redacted]", rec["password"])
	}
}

func TestNewLogger_PrettyFormat(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := NewLogger("debug", "pretty", &buf)
	log.Debug("oauth.link.start", "account_id", "01J")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG]") || !strings.Contains(out, "account_id=01J") {
		t.Fatalf("unexpected pretty output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("non-terminal writer should not be colored: %q", out)
	}
}
