package config

import "encoding/json"

const redacted = "[REDACTED]"

// SensitiveString is a string that never prints its value.
type SensitiveString string

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the underlying secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s SensitiveString) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
