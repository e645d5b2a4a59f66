// Copyright 2024-2026 Aiku AI

package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type S3Config struct {
	Region string `yaml:"region" koanf:"region"`
	Bucket string `yaml:"bucket" koanf:"bucket"`
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint       string `yaml:"endpoint" koanf:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style" koanf:"force_path_style"`
	// AccessKeyID and SecretAccessKey are optional. The default AWS
	// credential chain is used when they are empty.
	AccessKeyID     string `yaml:"access_key_id" koanf:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" koanf:"secret_access_key"`
	// PublicURL replaces the computed link prefix, e.g. a CDN in front of
	// the bucket.
	PublicURL string `yaml:"public_url" koanf:"public_url"`
}

// S3 uploads to an AWS S3 bucket.
type S3 struct {
	client     *s3.Client
	bucket     string
	prefix     string
	linkPrefix string
}

func NewS3(ctx context.Context, cfg S3Config, prefix string) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	linkPrefix := cfg.PublicURL
	switch {
	case linkPrefix != "":
	case endpoint != "" && cfg.ForcePathStyle:
		linkPrefix = endpoint + "/" + cfg.Bucket
	case endpoint != "":
		linkPrefix = strings.Replace(endpoint, "://", "://"+cfg.Bucket+".", 1)
	default:
		linkPrefix = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     prefix,
		linkPrefix: strings.TrimSuffix(linkPrefix, "/") + "/",
	}, nil
}

func (s *S3) LinkPrefix() string {
	return s.linkPrefix
}

func (s *S3) Upload(ctx context.Context, name string, r io.Reader, size int64) (Object, error) {
	ctx, span := tracer.Start(ctx, "upload.s3")
	defer span.End()

	key := path.Join(s.prefix, name)
	span.SetAttributes(
		attribute.String("upload.bucket", s.bucket),
		attribute.String("upload.key", key),
	)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType(name)),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Object{}, fmt.Errorf("failed to put object: %w", err)
	}
	return Object{Key: key, Link: s.linkPrefix + key}, nil
}
