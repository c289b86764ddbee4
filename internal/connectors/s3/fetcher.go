// Package s3 fetches documents from S3-compatible object storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.DocumentFetcher = (*Fetcher)(nil)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "s3.amazonaws.com"

// MaxDocumentSize caps the bytes read from one object.
const MaxDocumentSize = 64 << 20

// Config holds connection settings.
type Config struct {
	// Endpoint is host[:port] or a URL. Empty means AWS S3.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Fetcher reads s3://bucket/key objects. The client is created on first use
// so configurations without S3 documents never touch credentials.
type Fetcher struct {
	cfg Config

	once      sync.Once
	client    *minio.Client
	clientErr error
}

// New creates an S3 fetcher.
func New(cfg Config) *Fetcher {
	return &Fetcher{cfg: cfg}
}

// NewWithClient creates a fetcher around an existing client.
func NewWithClient(client *minio.Client) *Fetcher {
	f := &Fetcher{client: client}
	f.once.Do(func() {})
	return f
}

// Supports reports whether location is an s3:// URL.
func (f *Fetcher) Supports(location string) bool {
	return strings.HasPrefix(strings.ToLower(location), "s3://")
}

// Fetch downloads the object named by location.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*driven.FetchResult, error) {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	f.once.Do(func() { f.client, f.clientErr = newClient(f.cfg) })
	if f.clientErr != nil {
		return nil, f.clientErr
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, describe(location, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, describe(location, err)
	}
	if info.Size > MaxDocumentSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", location, MaxDocumentSize)
	}

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, describe(location, err)
	}
	return &driven.FetchResult{Content: content, LastModified: info.LastModified.UTC()}, nil
}

// ParseLocation splits s3://bucket/key.
func ParseLocation(location string) (bucket, key string, err error) {
	if len(location) < len("s3://") || !strings.EqualFold(location[:5], "s3://") {
		return "", "", fmt.Errorf("%w: not an s3 location: %s", domain.ErrInvalidInput, location)
	}
	rest := location[5:]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: s3 location needs bucket and key: %s", domain.ErrInvalidInput, location)
	}
	return bucket, key, nil
}

func newClient(cfg Config) (*minio.Client, error) {
	endpoint, secure, err := endpointHost(cfg)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

// endpointHost extracts host[:port] and TLS from the configured endpoint.
func endpointHost(cfg Config) (string, bool, error) {
	if cfg.Endpoint == "" {
		return DefaultEndpoint, true, nil
	}
	if !strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint, cfg.UseSSL, nil
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("%w: invalid s3 endpoint %q", domain.ErrInvalidInput, cfg.Endpoint)
	}
	return u.Host, cfg.UseSSL || u.Scheme == "https", nil
}

func describe(location string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey":
			return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, location, resp.Code)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("access denied reading %s: %s", location, resp.Code)
		}
	}
	return fmt.Errorf("read %s: %w", location, err)
}
