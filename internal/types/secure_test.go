package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// The credentials the bot actually carries, per config field.
var secretCases = []struct {
	name  string
	value string
}{
	{"bot token", "7123456789:AAF-fake-telegram-bot-token"},
	{"webhook secret", "whsec-3f1c9a7e2b"},
	{"weather api key", "0a1b2c3d4e5f60718293a4b5c6d7e8f9"},
	{"database dsn", "postgres://bot:hunter2@db:5432/weatherbot"},
}

func TestSecretString_FmtRedacts(t *testing.T) {
	for _, tc := range secretCases {
		t.Run(tc.name, func(t *testing.T) {
			s := SecretString(tc.value)

			for _, verb := range []string{"%s", "%v", "%+v"} {
				got := fmt.Sprintf(verb, s)
				if strings.Contains(got, tc.value) {
					t.Errorf("fmt %s leaked the plaintext: %s", verb, got)
				}
				if !strings.Contains(got, redactedValue) {
					t.Errorf("fmt %s = %q, want the redaction marker", verb, got)
				}
			}
		})
	}
}

func TestSecretString_JSONRedacts(t *testing.T) {
	// Config structs embed SecretString fields next to plain ones; a dump of
	// the whole struct must redact only the secret.
	cfg := struct {
		Token SecretString `json:"token"`
		Env   string       `json:"env"`
	}{
		Token: "7123456789:AAF-fake-telegram-bot-token",
		Env:   "production",
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	out := string(data)
	if strings.Contains(out, cfg.Token.Unmask()) {
		t.Errorf("marshaled config leaked the token: %s", out)
	}
	if !strings.Contains(out, redactedValue) || !strings.Contains(out, "production") {
		t.Errorf("marshaled config = %s", out)
	}
}

func TestSecretString_SlogRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := SecretString("whsec-3f1c9a7e2b")
	logger.Info("webhook registered", slog.Any("secret", s))

	out := buf.String()
	if strings.Contains(out, s.Unmask()) {
		t.Errorf("log line leaked the secret: %s", out)
	}
	if !strings.Contains(out, redactedValue) {
		t.Errorf("log line missing the redaction marker: %s", out)
	}
}

func TestSecretString_Unmask(t *testing.T) {
	const dsn = "postgres://bot:hunter2@db:5432/weatherbot"
	if got := SecretString(dsn).Unmask(); got != dsn {
		t.Errorf("Unmask() = %q, want %q", got, dsn)
	}
}

func TestSecretString_EmptyStillRedacts(t *testing.T) {
	// An unset credential redacts the same way, so a log line never reveals
	// whether a secret is configured.
	s := SecretString("")
	if s.String() != redactedValue {
		t.Errorf("String() = %q, want %q", s.String(), redactedValue)
	}
	if s.Unmask() != "" {
		t.Errorf("Unmask() = %q, want empty", s.Unmask())
	}
}
