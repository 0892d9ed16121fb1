package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

const (
	HeaderSignature = "X-Hub-Signature-256"
	prefixEnv       = "env://"
	prefixSignature = "sha256="
)

// Verifier validates an incoming webhook request using the given raw body.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request, body []byte) error
}

// NewSignatureVerifier checks X-Hub-Signature-256 against an HMAC-SHA256 of
// the body keyed with the app secret. The secret may be given as env://NAME.
func NewSignatureVerifier(secret string) (Verifier, error) {
	sec, err := resolveSecret(secret)
	if err != nil {
		return nil, err
	}
	return signatureVerifier{secret: sec}, nil
}

func resolveSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty secret")
	}
	if key, ok := strings.CutPrefix(s, prefixEnv); ok {
		val := os.Getenv(key)
		if val == "" {
			return nil, fmt.Errorf("secret env %q not set", key)
		}
		return []byte(val), nil
	}
	return []byte(s), nil
}

type signatureVerifier struct {
	secret []byte
}

func (v signatureVerifier) Verify(_ context.Context, r *http.Request, body []byte) error {
	header := strings.TrimSpace(r.Header.Get(HeaderSignature))
	if header == "" {
		return fmt.Errorf("%w: missing %s", ErrUnauthorized, HeaderSignature)
	}
	sig, ok := strings.CutPrefix(header, prefixSignature)
	if !ok {
		return fmt.Errorf("%w: invalid signature prefix", ErrUnauthorized)
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding: %w", ErrUnauthorized, err)
	}
	if !hmac.Equal(Sign(v.secret, body), got) {
		return fmt.Errorf("%w: signature mismatch", ErrUnauthorized)
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}
