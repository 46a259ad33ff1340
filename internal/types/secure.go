package types

import "log/slog"

const redactedValue = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential the bot must never echo back: the Telegram
// bot token, the webhook secret, provider API keys, the database DSN. It
// redacts itself through fmt, JSON, and slog; only Unmask returns the real
// value, at the call site that actually hands it to a client.
type SecretString string

// String satisfies fmt.Stringer so %s and %v print the redaction marker.
func (s SecretString) String() string {
	return redactedValue
}

// MarshalJSON redacts the value in any serialized form, config dumps included.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue satisfies slog.LogValuer so a SecretString passed as a log
// attribute is redacted before the handler sees it.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedValue)
}

// Unmask returns the plaintext. Call it only where the credential is actually
// consumed, never to build a message or a log line.
func (s SecretString) Unmask() string {
	return string(s)
}
