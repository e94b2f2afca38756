package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// Entry is a single raw webhook delivery.
type Entry struct {
	EventID  string
	Kind     string
	Received time.Time
	Payload  []byte
}

// Archiver persists raw deliveries and returns the key they were stored under.
type Archiver interface {
	Archive(ctx context.Context, e Entry) (string, error)
}

// Discard is an Archiver that stores nothing.
type Discard struct{}

func (Discard) Archive(context.Context, Entry) (string, error) { return "", nil }

// S3Client defines the S3 operations used by S3Archive.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes entries to an S3 bucket. It is safe for concurrent use.
type S3Archive struct {
	client  S3Client
	bucket  string
	prefix  string
	timeout time.Duration
	newID   func() string
}

// Option configures S3Archive.
type Option func(*options)

type options struct {
	httpClient      *http.Client
	s3Client        S3Client
	s3ClientOptions []func(*s3.Options)
	newID           func() string
}

// WithS3Client sets a pre-configured S3 client. Useful for testing with mocks.
func WithS3Client(client S3Client) Option {
	return func(o *options) { o.s3Client = client }
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithS3ClientOption adds a custom S3 client option.
func WithS3ClientOption(option func(*s3.Options)) Option {
	return func(o *options) { o.s3ClientOptions = append(o.s3ClientOptions, option) }
}

// WithIDGenerator replaces the per-delivery object id source.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// New creates an S3Archive.
func New(ctx context.Context, cfg Config, opts ...Option) (*S3Archive, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(o)
	}

	client := o.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if o.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(o.httpClient))
		}

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
			for _, opt := range o.s3ClientOptions {
				opt(so)
			}
		})
	}

	prefix := strings.TrimPrefix(cfg.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Archive{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  prefix,
		timeout: cfg.Timeout,
		newID:   o.newID,
	}, nil
}

// Key returns the object key for an entry and a delivery id.
func (a *S3Archive) Key(e Entry, deliveryID string) string {
	received := e.Received
	if received.IsZero() {
		received = time.Now()
	}
	return a.prefix + path.Join(
		received.UTC().Format("2006/01/02"),
		segment(e.Kind, "unknown"),
		segment(e.EventID, "no-id"),
		deliveryID+".json",
	)
}

// segment keeps gateway-supplied values from escaping their key level.
func segment(s, fallback string) string {
	s = strings.NewReplacer("/", "_", "..", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return s
}

// Archive stores the raw payload of e.
func (a *S3Archive) Archive(ctx context.Context, e Entry) (string, error) {
	if len(e.Payload) == 0 {
		return "", ErrEmptyPayload
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	key := a.Key(e, a.newID())
	metadata := map[string]string{"event-type": e.Kind}
	if e.EventID != "" {
		metadata["event-id"] = e.EventID
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(e.Payload),
		ContentLength: aws.Int64(int64(len(e.Payload))),
		ContentType:   aws.String("application/json"),
		Metadata:      metadata,
	})
	if err != nil {
		return "", classifyS3Error(err, "archive webhook")
	}
	return key, nil
}

// classifyS3Error converts S3 errors to package errors.
func classifyS3Error(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s operation", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s operation", ErrOperationCanceled, operation)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "AccessDenied":
			return fmt.Errorf("%w: %s operation", ErrAccessDenied, operation)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s operation", ErrServiceUnavailable, operation)
		case "NoSuchBucket":
			return ErrBucketNotFound
		default:
			return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}
