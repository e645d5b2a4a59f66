// Copyright 2024-2026 Aiku AI

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type DiskConfig struct {
	Directory string `yaml:"directory" koanf:"directory"`
	// BaseURL is the public URL the directory is served under. Links use
	// file:// URLs when empty.
	BaseURL string `yaml:"base_url" koanf:"base_url"`
}

// Disk writes uploads to a local directory. It is meant for development
// and single-host deployments.
type Disk struct {
	dir        string
	prefix     string
	linkPrefix string
}

func NewDisk(cfg DiskConfig, prefix string) (*Disk, error) {
	dir, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	linkPrefix := strings.TrimSuffix(cfg.BaseURL, "/") + "/"
	if cfg.BaseURL == "" {
		linkPrefix = (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir) + "/"}).String()
	}
	return &Disk{dir: dir, prefix: prefix, linkPrefix: linkPrefix}, nil
}

func (d *Disk) LinkPrefix() string {
	return d.linkPrefix
}

func (d *Disk) Upload(ctx context.Context, name string, r io.Reader, _ int64) (Object, error) {
	_, span := tracer.Start(ctx, "upload.disk")
	defer span.End()

	key := path.Join(d.prefix, name)
	if key == "." || key == ".." || strings.HasPrefix(key, "../") || path.IsAbs(key) {
		return Object{}, errors.New("invalid object name")
	}
	span.SetAttributes(attribute.String("upload.key", key))

	target := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return Object{}, fmt.Errorf("failed to create upload directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Object{}, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		span.SetStatus(codes.Error, err.Error())
		return Object{}, fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(target)
		return Object{}, fmt.Errorf("failed to close upload file: %w", err)
	}
	return Object{Key: key, Link: d.linkPrefix + key}, nil
}
