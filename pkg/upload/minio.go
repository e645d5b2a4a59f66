// Copyright 2024-2026 Aiku AI

package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type MinIOConfig struct {
	// Endpoint is host[:port] without scheme.
	Endpoint  string `yaml:"endpoint" koanf:"endpoint"`
	Bucket    string `yaml:"bucket" koanf:"bucket"`
	Region    string `yaml:"region" koanf:"region"`
	AccessKey string `yaml:"access_key" koanf:"access_key"`
	SecretKey string `yaml:"secret_key" koanf:"secret_key"`
	Insecure  bool   `yaml:"insecure" koanf:"insecure"`
	PublicURL string `yaml:"public_url" koanf:"public_url"`
}

// MinIO uploads to any S3-compatible server through minio-go.
type MinIO struct {
	client     *minio.Client
	bucket     string
	prefix     string
	linkPrefix string
}

func NewMinIO(cfg MinIOConfig, prefix string) (*MinIO, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvMinio{},
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        creds,
		Secure:       !cfg.Insecure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	linkPrefix := cfg.PublicURL
	if linkPrefix == "" {
		linkPrefix = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return &MinIO{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     prefix,
		linkPrefix: strings.TrimSuffix(linkPrefix, "/") + "/",
	}, nil
}

func (m *MinIO) LinkPrefix() string {
	return m.linkPrefix
}

func (m *MinIO) Upload(ctx context.Context, name string, r io.Reader, size int64) (Object, error) {
	ctx, span := tracer.Start(ctx, "upload.minio")
	defer span.End()

	key := path.Join(m.prefix, name)
	span.SetAttributes(
		attribute.String("upload.bucket", m.bucket),
		attribute.String("upload.key", key),
	)
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType(name)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Object{}, fmt.Errorf("failed to put object: %w", err)
	}
	return Object{Key: key, Link: m.linkPrefix + key}, nil
}
