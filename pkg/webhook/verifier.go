package webhook

import (
	"crypto/hmac"
	"fmt"
	"time"
)

// Verifier checks signature headers against a shared secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithTolerance overrides DefaultTolerance. Zero disables the age check.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d >= 0 {
			v.tolerance = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify authenticates payload against the raw signature header value.
func (v *Verifier) Verify(payload []byte, header string) error {
	if v.secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(sig.Timestamp, 0))
		if age > v.tolerance || age < -v.tolerance {
			return fmt.Errorf("%w: age %v", ErrTimestampOutOfRange, age)
		}
	}

	expected := []byte(ComputeSignature(v.secret, sig.Timestamp, payload))
	for _, candidate := range sig.V1 {
		if hmac.Equal(expected, []byte(candidate)) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", ErrNoValidSignature)
}
