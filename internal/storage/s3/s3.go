// Package s3 archives exported batch reports to S3-compatible object storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config holds S3 connection and behavior configuration.
type Config struct {
	// Enabled turns report archiving on.
	Enabled bool `yaml:"enabled"`

	// Region is the AWS region.
	Region string `yaml:"region"`

	// Bucket is the S3 bucket name.
	Bucket string `yaml:"bucket"`

	// Prefix is the key prefix for all objects.
	Prefix string `yaml:"prefix"`

	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string `yaml:"endpoint,omitempty"`

	// AccessKeyID for static credentials (optional, uses the default chain if not set).
	AccessKeyID string `yaml:"access_key_id,omitempty"`

	// SecretAccessKey for static credentials.
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`

	// StorageClass for uploaded objects (STANDARD, STANDARD_IA, GLACIER_IR, ...).
	StorageClass string `yaml:"storage_class"`

	// UsePathStyle forces path-style addressing.
	UsePathStyle bool `yaml:"use_path_style"`

	// RetryMaxAttempts for failed operations.
	RetryMaxAttempts int `yaml:"retry_max_attempts"`

	// Timeout bounds a single upload.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults. Archiving is off.
func DefaultConfig() Config {
	return Config{
		Region:           "us-east-1",
		Bucket:           "nids-reports",
		Prefix:           "reports/",
		StorageClass:     "STANDARD",
		RetryMaxAttempts: 3,
		Timeout:          30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Region == "" {
		return errors.New("s3: region is required")
	}
	if c.Bucket == "" {
		return errors.New("s3: bucket is required")
	}
	return nil
}

// GetStorageClass returns the S3 storage class type.
func (c *Config) GetStorageClass() types.StorageClass {
	switch strings.ToUpper(c.StorageClass) {
	case "STANDARD_IA":
		return types.StorageClassStandardIa
	case "ONEZONE_IA":
		return types.StorageClassOnezoneIa
	case "INTELLIGENT_TIERING":
		return types.StorageClassIntelligentTiering
	case "GLACIER_IR":
		return types.StorageClassGlacierIr
	default:
		return types.StorageClassStandard
	}
}

// putObjectAPI is the subset of the S3 API used by Client.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads report objects.
type Client struct {
	api    putObjectAPI
	config Config
	logger *slog.Logger

	bytesUploaded   atomic.Int64
	objectsUploaded atomic.Int64
	errors          atomic.Int64
}

// NewClient creates a new S3 client.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(creds))
	}
	if cfg.RetryMaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.RetryMaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	logger.Info("s3 client initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"storage_class", cfg.StorageClass,
	)

	return newClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger), nil
}

func newClient(api putObjectAPI, cfg Config, logger *slog.Logger) *Client {
	return &Client{api: api, config: cfg, logger: logger}
}

// UploadInput contains parameters for uploading an object.
type UploadInput struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// UploadOutput contains the result of an upload operation.
type UploadOutput struct {
	Key      string
	ETag     string
	Location string
	Size     int64
}

// Upload stores one object under the configured prefix.
func (c *Client) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	key := c.config.Prefix + input.Key

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	putInput := &s3.PutObjectInput{
		Bucket:       aws.String(c.config.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(input.Data),
		StorageClass: c.config.GetStorageClass(),
	}
	if input.ContentType != "" {
		putInput.ContentType = aws.String(input.ContentType)
	}
	if len(input.Metadata) > 0 {
		putInput.Metadata = input.Metadata
	}

	result, err := c.api.PutObject(ctx, putInput)
	if err != nil {
		c.errors.Add(1)
		return nil, fmt.Errorf("s3: failed to upload object %s: %w", key, err)
	}

	size := int64(len(input.Data))
	c.bytesUploaded.Add(size)
	c.objectsUploaded.Add(1)

	c.logger.Debug("uploaded object", "key", key, "size", size)

	return &UploadOutput{
		Key:      key,
		ETag:     aws.ToString(result.ETag),
		Location: fmt.Sprintf("s3://%s/%s", c.config.Bucket, key),
		Size:     size,
	}, nil
}

// ClientMetrics contains upload counters.
type ClientMetrics struct {
	BytesUploaded   int64
	ObjectsUploaded int64
	Errors          int64
}

// GetMetrics returns client metrics.
func (c *Client) GetMetrics() ClientMetrics {
	return ClientMetrics{
		BytesUploaded:   c.bytesUploaded.Load(),
		ObjectsUploaded: c.objectsUploaded.Load(),
		Errors:          c.errors.Load(),
	}
}
