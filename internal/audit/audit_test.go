package audit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/54b3r/raglab-go/internal/config"
	"github.com/54b3r/raglab-go/internal/provider"
)

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.raglab/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.raglab/config.yaml" {
			t.Errorf("expected '~/.raglab/config.yaml', got %q", got)
		}
	}
}

// TestLogCommandStart_RedactsSecrets verifies secrets appear only as
// presence markers.
func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Model.Backend = provider.BackendOpenAI
	cfg.Model.OpenAI.APIKey = "sk-super-secret"
	cfg.Memory.Redis.Password = "hunter2"

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "ask", "/tmp/raglab.yaml", &cfg)

	out := buf.String()
	for _, secret := range []string{"sk-super-secret", "hunter2"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked into audit log: %s", secret, out)
		}
	}
	for _, want := range []string{`"command":"ask"`, `"provider":"openai"`, `"api_key":"set"`, `"collection":"raglab"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in audit log: %s", want, out)
		}
	}
}
