package types

import "log/slog"

const redacted = "[redacted]"

// SecretString holds credentials such as API keys, webhook signing secrets
// and the database URL. Formatting, JSON encoding and slog attributes all
// print a placeholder; Unmask is the only way back to the value.
type SecretString string

func (s SecretString) String() string   { return redacted }
func (s SecretString) GoString() string { return redacted }

// LogValue keeps secrets out of structured logs even when passed as
// slog.Any.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// IsZero reports whether no secret was configured.
func (s SecretString) IsZero() bool { return s == "" }

// Unmask returns the plaintext. Call it only at the point of use: an HTTP
// header, a driver DSN or an HMAC key.
func (s SecretString) Unmask() string { return string(s) }
