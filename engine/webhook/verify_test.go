package webhook

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	return req
}

func TestSignatureVerifier(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	valid := "sha256=" + hex.EncodeToString(Sign([]byte("s3cret"), body))

	t.Run("Should accept a matching signature", func(t *testing.T) {
		v, err := NewSignatureVerifier("s3cret")
		require.NoError(t, err)
		assert.NoError(t, v.Verify(t.Context(), signedRequest(string(body), valid), body))
	})

	t.Run("Should reject missing, malformed and mismatched signatures", func(t *testing.T) {
		v, err := NewSignatureVerifier("s3cret")
		require.NoError(t, err)
		for _, sig := range []string{"", "md5=abcd", "sha256=zz", "sha256=" + hex.EncodeToString(Sign([]byte("other"), body))} {
			err := v.Verify(t.Context(), signedRequest(string(body), sig), body)
			assert.ErrorIs(t, err, ErrUnauthorized, "signature %q", sig)
		}
	})

	t.Run("Should resolve the secret from the environment", func(t *testing.T) {
		t.Setenv("WABOT_TEST_APP_SECRET", "s3cret")
		v, err := NewSignatureVerifier("env://WABOT_TEST_APP_SECRET")
		require.NoError(t, err)
		assert.NoError(t, v.Verify(t.Context(), signedRequest(string(body), valid), body))
	})

	t.Run("Should fail when the secret is empty or unset", func(t *testing.T) {
		_, err := NewSignatureVerifier("")
		assert.Error(t, err)
		_, err = NewSignatureVerifier("env://WABOT_TEST_UNSET_SECRET")
		assert.Error(t, err)
	})
}
