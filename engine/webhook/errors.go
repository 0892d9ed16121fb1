package webhook

import "errors"

var (
	// ErrUnauthorized reports a delivery whose signature did not verify.
	ErrUnauthorized = errors.New("webhook: signature verification failed")
	// ErrPayloadTooLarge reports a body above the configured limit.
	ErrPayloadTooLarge = errors.New("webhook: payload too large")
)
