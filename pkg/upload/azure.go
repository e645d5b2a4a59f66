// Copyright 2024-2026 Aiku AI

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type AzureConfig struct {
	Account    string `yaml:"account" koanf:"account"`
	AccountKey string `yaml:"account_key" koanf:"account_key"`
	// Endpoint overrides https://<account>.blob.core.windows.net.
	Endpoint  string `yaml:"endpoint" koanf:"endpoint"`
	Container string `yaml:"container" koanf:"container"`
	PublicURL string `yaml:"public_url" koanf:"public_url"`
}

// Azure uploads block blobs to an Azure Storage container.
type Azure struct {
	client     *azblob.Client
	container  string
	prefix     string
	linkPrefix string
}

func NewAzure(ctx context.Context, cfg AzureConfig, prefix string) (*Azure, error) {
	if cfg.AccountKey == "" {
		return nil, errors.New("upload.azure.account_key is required")
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.Account)
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build azure credentials: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint+"/", cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	if _, err = client.CreateContainer(ctx, cfg.Container, nil); err != nil && !isContainerExists(err) {
		return nil, fmt.Errorf("failed to create azure container: %w", err)
	}
	linkPrefix := cfg.PublicURL
	if linkPrefix == "" {
		linkPrefix = endpoint + "/" + cfg.Container
	}
	return &Azure{
		client:     client,
		container:  cfg.Container,
		prefix:     prefix,
		linkPrefix: strings.TrimSuffix(linkPrefix, "/") + "/",
	}, nil
}

func isContainerExists(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusConflict && strings.EqualFold(respErr.ErrorCode, "ContainerAlreadyExists")
	}
	return false
}

func (a *Azure) LinkPrefix() string {
	return a.linkPrefix
}

func (a *Azure) Upload(ctx context.Context, name string, r io.Reader, _ int64) (Object, error) {
	ctx, span := tracer.Start(ctx, "upload.azure")
	defer span.End()

	key := path.Join(a.prefix, name)
	span.SetAttributes(
		attribute.String("upload.container", a.container),
		attribute.String("upload.key", key),
	)
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read upload: %w", err)
	}
	_, err = a.client.UploadBuffer(ctx, a.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType(name))},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Object{}, fmt.Errorf("failed to upload blob: %w", err)
	}
	return Object{Key: key, Link: a.linkPrefix + key}, nil
}
