package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact non-empty values", func(t *testing.T) {
		s := SensitiveString("EAAG-access-token")
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	})

	t.Run("Should return empty string for empty values", func(t *testing.T) {
		assert.Equal(t, "", SensitiveString("").String())
	})

	t.Run("Should expose the raw value through Value", func(t *testing.T) {
		assert.Equal(t, "hub-token", SensitiveString("hub-token").Value())
	})

	t.Run("Should marshal as redacted JSON", func(t *testing.T) {
		data, err := json.Marshal(WhatsAppConfig{PhoneNumberID: "123", AccessToken: "secret"})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"AccessToken":"[REDACTED]"`)
		assert.NotContains(t, string(data), "secret")
	})
}
