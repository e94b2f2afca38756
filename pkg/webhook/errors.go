package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrMalformedHeader      = errors.New("malformed webhook signature header")
	ErrNoValidSignature     = errors.New("no valid webhook signature")
	ErrTimestampOutOfRange  = errors.New("webhook timestamp outside tolerance")
)

// IsSignatureError reports whether err means the request failed authentication,
// as opposed to a misconfigured verifier.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrNoValidSignature) ||
		errors.Is(err, ErrTimestampOutOfRange) ||
		errors.Is(err, ErrInvalidPayload)
}
