package store

import "log/slog"

// Secret is a string that never prints its value.
type Secret string

// String implements fmt.Stringer.
func (Secret) String() string { return "[REDACTED]" }

// LogValue implements slog.LogValuer.
func (Secret) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Reveal returns the raw value.
func (s Secret) Reveal() string { return string(s) }

// Settings are process-wide values shared by all domain services.
type Settings struct {
	CryptKey                 Secret
	JWTSecret                Secret
	MultiOrganizationEnabled bool
}
