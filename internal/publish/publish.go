// Package publish uploads built artifacts to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/renderinc/blogpipe/internal/config"
)

// ObjectPutter is the part of the S3 client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client from cfg. A custom endpoint (R2, MinIO) switches
// to path-style addressing.
func NewS3Client(ctx context.Context, cfg config.PublishConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	log    zerolog.Logger
}

func NewPublisher(client ObjectPutter, bucket, prefix string, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: prefix, log: log}
}

// Publish uploads each named file from dir and returns the object keys
// written. It stops at the first failure.
func (p *Publisher) Publish(ctx context.Context, dir string, names []string) ([]string, error) {
	if p.bucket == "" {
		return nil, errors.New("publish bucket is not configured")
	}

	var keys []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return keys, fmt.Errorf("read artifact %s: %w", name, err)
		}

		key := path.Join(p.prefix, filepath.ToSlash(name))
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(p.bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(data),
			ContentType:  aws.String(ContentType(name)),
			CacheControl: aws.String("public, max-age=300"),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", key, err)
		}

		p.log.Info().Str("path", name).Str("key", key).Int("bytes", len(data)).Msg("artifact uploaded")
		keys = append(keys, key)
	}
	return keys, nil
}

// ContentType picks the served media type of an artifact.
func ContentType(name string) string {
	switch ext := filepath.Ext(name); ext {
	case ".json":
		return "application/json; charset=utf-8"
	case ".xml":
		return "application/rss+xml; charset=utf-8"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
