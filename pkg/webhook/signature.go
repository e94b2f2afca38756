package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds the accepted age of a signature timestamp.
const DefaultTolerance = 300 * time.Second

const schemeV1 = "v1"

// Signature is a parsed signature header.
type Signature struct {
	Timestamp int64
	V1        []string
}

// String renders the header value.
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString("t=")
	b.WriteString(strconv.FormatInt(s.Timestamp, 10))
	for _, v := range s.V1 {
		b.WriteString(",")
		b.WriteString(schemeV1)
		b.WriteString("=")
		b.WriteString(v)
	}
	return b.String()
}

// ParseSignatureHeader parses "t=<unix>,v1=<hex>[,v1=<hex>...]".
// Unknown schemes (v0 and friends) are ignored.
func ParseSignatureHeader(header string) (Signature, error) {
	var sig Signature
	if strings.TrimSpace(header) == "" {
		return sig, fmt.Errorf("%w: header is empty", ErrMalformedHeader)
	}

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Signature{}, fmt.Errorf("%w: %q", ErrMalformedHeader, part)
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Signature{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedHeader, value)
			}
			sig.Timestamp = ts
		case schemeV1:
			sig.V1 = append(sig.V1, value)
		}
	}

	if sig.Timestamp == 0 {
		return Signature{}, fmt.Errorf("%w: missing timestamp", ErrMalformedHeader)
	}
	if len(sig.V1) == 0 {
		return Signature{}, fmt.Errorf("%w: no %s signatures", ErrNoValidSignature, schemeV1)
	}
	return sig, nil
}

// ComputeSignature returns hex(HMAC-SHA256(secret, "<ts>.<payload>")).
func ComputeSignature(secret string, timestamp int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Sign builds a header value for payload at time at.
func Sign(secret string, payload []byte, at time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	ts := at.Unix()
	return Signature{Timestamp: ts, V1: []string{ComputeSignature(secret, ts, payload)}}.String(), nil
}
