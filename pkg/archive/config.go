package archive

import "time"

// Config is read from ARCHIVE_S3_* variables. An empty bucket disables archiving.
type Config struct {
	Bucket         string        `env:"ARCHIVE_S3_BUCKET"`
	Region         string        `env:"ARCHIVE_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string        `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretKey      string        `env:"ARCHIVE_S3_SECRET_KEY"`
	Endpoint       string        `env:"ARCHIVE_S3_ENDPOINT"`                            // Optional: for S3-compatible services
	ForcePathStyle bool          `env:"ARCHIVE_S3_FORCE_PATH_STYLE" envDefault:"false"` // For MinIO and friends
	Prefix         string        `env:"ARCHIVE_S3_PREFIX" envDefault:"webhooks/"`
	Timeout        time.Duration `env:"ARCHIVE_S3_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}
