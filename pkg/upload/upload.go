// Copyright 2024-2026 Aiku AI

// Package upload publishes exported session credentials to object storage
// and returns a link the user can share with their bot deployment.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.mau.fi/util/random"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/aiku/wa-pairing/pkg/upload")

const (
	BackendDisk  = "disk"
	BackendS3    = "s3"
	BackendMinIO = "minio"
	BackendAzure = "azure"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeSealed = "application/octet-stream"
	sealedExt         = ".age"
)

// contentType returns the content type stored with an object called name.
func contentType(name string) string {
	if strings.HasSuffix(name, sealedExt) {
		return contentTypeSealed
	}
	return contentTypeJSON
}

// Object identifies an uploaded file. Link always starts with the
// uploader's LinkPrefix.
type Object struct {
	Key  string
	Link string
}

// SessionID returns the link with prefix removed.
func (o Object) SessionID(prefix string) string {
	return strings.TrimPrefix(o.Link, prefix)
}

// Uploader stores a file under name and returns where it ended up.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64) (Object, error)
	LinkPrefix() string
}

// Config selects the storage backend.
type Config struct {
	Backend string `yaml:"backend" koanf:"backend"`
	// Prefix is prepended to every object key, e.g. "sessions/".
	Prefix string `yaml:"prefix" koanf:"prefix"`
	// AgeRecipients seals uploads to these age X25519 public keys.
	AgeRecipients []string `yaml:"age_recipients" koanf:"age_recipients"`

	Disk  DiskConfig  `yaml:"disk" koanf:"disk"`
	S3    S3Config    `yaml:"s3" koanf:"s3"`
	MinIO MinIOConfig `yaml:"minio" koanf:"minio"`
	Azure AzureConfig `yaml:"azure" koanf:"azure"`
}

// Validate checks that the selected backend has its required settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDisk:
		if c.Disk.Directory == "" {
			return errors.New("upload.disk.directory is required")
		}
	case BackendS3:
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return errors.New("upload.s3.bucket and upload.s3.region are required")
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return errors.New("upload.minio.endpoint and upload.minio.bucket are required")
		}
	case BackendAzure:
		if c.Azure.Account == "" || c.Azure.Container == "" {
			return errors.New("upload.azure.account and upload.azure.container are required")
		}
	default:
		return fmt.Errorf("unknown upload backend %q", c.Backend)
	}
	for _, key := range c.AgeRecipients {
		if _, err := parseRecipient(key); err != nil {
			return err
		}
	}
	return nil
}

// New creates the uploader selected by cfg, wrapped in a Sealer when age
// recipients are configured.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With().Str("component", "upload").Str("backend", cfg.Backend).Logger()
	prefix := strings.TrimLeft(cfg.Prefix, "/")

	var (
		up  Uploader
		err error
	)
	switch cfg.Backend {
	case BackendDisk:
		up, err = NewDisk(cfg.Disk, prefix)
	case BackendS3:
		up, err = NewS3(ctx, cfg.S3, prefix)
	case BackendMinIO:
		up, err = NewMinIO(cfg.MinIO, prefix)
	case BackendAzure:
		up, err = NewAzure(ctx, cfg.Azure, prefix)
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.AgeRecipients) > 0 {
		up, err = NewSealer(up, cfg.AgeRecipients)
		if err != nil {
			return nil, err
		}
		log.Info().Int("recipients", len(cfg.AgeRecipients)).Msg("Uploads are sealed with age")
	}
	log.Debug().Str("link_prefix", up.LinkPrefix()).Msg("Uploader ready")
	return up, nil
}

// NewObjectName returns a random file name of six alphanumerics followed by
// a number below 10000 and the .json extension.
func NewObjectName() string {
	return random.String(6) + strconv.Itoa(rand.IntN(10000)) + ".json"
}
