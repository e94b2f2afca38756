package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxBodySize is the default maximum size for request bodies (1MB).
const DefaultMaxBodySize = 1 << 20

// Option configures the JSON binder.
type Option func(*jsonOptions)

type jsonOptions struct {
	maxSize    int64
	allowEmpty bool
}

// WithMaxSize overrides DefaultMaxBodySize.
func WithMaxSize(n int64) Option {
	return func(o *jsonOptions) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// AllowEmpty accepts a missing body and leaves v untouched.
func AllowEmpty() Option {
	return func(o *jsonOptions) { o.allowEmpty = true }
}

// JSON creates a strict JSON binder function.
func JSON(opts ...Option) func(r *http.Request, v any) error {
	o := jsonOptions{maxSize: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&o)
	}

	return func(r *http.Request, v any) error {
		if err := r.Context().Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}

		body, err := Body(r, o.maxSize)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			if o.allowEmpty {
				return nil
			}
			return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}

		// Ensure entire body was consumed
		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}
		return nil
	}
}

// Body reads the whole request body, failing with ErrBodyTooLarge past maxSize bytes.
func Body(r *http.Request, maxSize int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadBody, err)
	}
	if int64(len(body)) > maxSize {
		return nil, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, maxSize)
	}
	return body, nil
}
