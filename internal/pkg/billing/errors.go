package billing

import "errors"

var (
	// ErrBadSignature means the webhook signature header did not match the
	// request body. Permanent rejection; the payload is never parsed.
	ErrBadSignature = errors.New("webhook signature verification failed")

	// ErrMalformedPayload means the verified body could not be decoded into
	// a billing event. Permanent rejection; retrying cannot succeed.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)
