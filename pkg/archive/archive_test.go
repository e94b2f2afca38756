package archive_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subsync/pkg/archive"
)

// MockS3Client is a mock implementation of the S3Client interface
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

var received = time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

func newArchive(t *testing.T, client archive.S3Client) *archive.S3Archive {
	t.Helper()
	a, err := archive.New(context.Background(), archive.Config{
		Bucket: "billing-archive",
		Region: "us-east-1",
		Prefix: "webhooks",
	}, archive.WithS3Client(client), archive.WithIDGenerator(func() string { return "d1" }))
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := archive.New(context.Background(), archive.Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, archive.ErrInvalidConfig)
	_, err = archive.New(context.Background(), archive.Config{Bucket: "b"})
	assert.ErrorIs(t, err, archive.ErrInvalidConfig)

	assert.False(t, archive.Config{}.Enabled())
	assert.True(t, archive.Config{Bucket: "b"}.Enabled())
}

func TestS3Archive_Key(t *testing.T) {
	t.Parallel()
	a := newArchive(t, new(MockS3Client))

	tests := []struct {
		name  string
		entry archive.Entry
		want  string
	}{
		{"regular", archive.Entry{EventID: "evt_1", Kind: "invoice.paid", Received: received}, "webhooks/2025/03/02/invoice.paid/evt_1/d1.json"},
		{"no id", archive.Entry{Kind: "invoice.paid", Received: received}, "webhooks/2025/03/02/invoice.paid/no-id/d1.json"},
		{"traversal", archive.Entry{EventID: "../../etc", Kind: "a/b", Received: received}, "webhooks/2025/03/02/a_b/____etc/d1.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, a.Key(tt.entry, "d1"))
		})
	}
}

func TestS3Archive_Archive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, _ := io.ReadAll(in.Body)
			return *in.Bucket == "billing-archive" &&
				*in.Key == "webhooks/2025/03/02/invoice.paid/evt_1/d1.json" &&
				*in.ContentType == "application/json" &&
				*in.ContentLength == int64(len(payload)) &&
				in.Metadata["event-id"] == "evt_1" &&
				string(body) == string(payload)
		}), mock.Anything).Return(&s3.PutObjectOutput{}, nil).Once()

		key, err := newArchive(t, client).Archive(ctx, archive.Entry{
			EventID: "evt_1", Kind: "invoice.paid", Received: received, Payload: payload,
		})
		require.NoError(t, err)
		assert.Equal(t, "webhooks/2025/03/02/invoice.paid/evt_1/d1.json", key)
		client.AssertExpectations(t)
	})

	t.Run("empty payload", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		_, err := newArchive(t, client).Archive(ctx, archive.Entry{EventID: "evt_1"})
		assert.ErrorIs(t, err, archive.ErrEmptyPayload)
		client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name string
		err  error
		want error
	}{
		{"no bucket", &types.NoSuchBucket{}, archive.ErrBucketNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, archive.ErrAccessDenied},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, archive.ErrServiceUnavailable},
		{"timeout", context.DeadlineExceeded, archive.ErrOperationTimeout},
		{"canceled", context.Canceled, archive.ErrOperationCanceled},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := new(MockS3Client)
			client.On("PutObject", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			_, err := newArchive(t, client).Archive(ctx, archive.Entry{Kind: "invoice.paid", Payload: payload})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unclassified", func(t *testing.T) {
		t.Parallel()
		client := new(MockS3Client)
		boom := errors.New("connection reset")
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom).Once()

		_, err := newArchive(t, client).Archive(ctx, archive.Entry{Kind: "invoice.paid", Payload: payload})
		assert.ErrorIs(t, err, boom)
	})
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	key, err := archive.Discard{}.Archive(context.Background(), archive.Entry{})
	assert.NoError(t, err)
	assert.Empty(t, key)
}
