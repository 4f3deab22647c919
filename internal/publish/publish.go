// Package publish uploads exported montages to S3-compatible object storage and hands out presigned download links.
package publish

import (
	"context"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/myrjola/sagaboard/internal/errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	KeyPrefix      = "montages/"
	DefaultExpiry  = 15 * time.Minute
	DefaultRegion  = "us-east-1"
	defaultTimeout = 5 * time.Minute
)

var ErrMissingBucket = errors.NewSentinel("storage bucket is required")

type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
	// Expiry of the presigned download link. Defaults to [DefaultExpiry].
	Expiry time.Duration
}

// Published describes an uploaded artifact.
type Published struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

type Publisher struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
	logger  *slog.Logger
}

// New creates a publisher. Static credentials are used when an access key is given, otherwise the default AWS
// credential chain applies.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Publisher{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  expiry,
		logger:  logger.With("source", "Publisher"),
	}, nil
}

// Publish uploads the file at localPath under montages/<file name> and returns a presigned GET link to it.
func (p *Publisher) Publish(ctx context.Context, localPath string, contentType string) (Published, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Published{}, errors.Wrap(err, "open artifact", slog.String("path", localPath))
	}
	defer f.Close()

	key := KeyPrefix + filepath.Base(localPath)
	attrs := []slog.Attr{slog.String("bucket", p.bucket), slog.String("key", key)}

	uploadCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err = p.client.PutObject(uploadCtx, &s3.PutObjectInput{ //nolint:exhaustruct // optional fields
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Published{}, errors.Wrap(err, "upload artifact", attrs...)
	}

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{ //nolint:exhaustruct // optional fields
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return Published{}, errors.Wrap(err, "presign download", attrs...)
	}

	p.logger.LogAttrs(ctx, slog.LevelInfo, "artifact published", attrs...)
	return Published{
		Key:       key,
		URL:       req.URL,
		ExpiresAt: time.Now().Add(p.expiry),
	}, nil
}
