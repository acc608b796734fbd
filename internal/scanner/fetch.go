package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultMaxBytes caps fetched media.
const DefaultMaxBytes = 10 << 20

// ErrTooLarge is returned when an object exceeds the fetch cap.
var ErrTooLarge = errors.New("media exceeds size cap")

// Fetcher loads the bytes stored under key, reading at most maxBytes.
type Fetcher interface {
	Fetch(ctx context.Context, key string, maxBytes int64) ([]byte, error)
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// S3Config describes an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioFetcher reads media from an S3-compatible bucket.
type MinioFetcher struct {
	client *minio.Client
	bucket string
}

// NewMinioClient builds a client for cfg.
func NewMinioClient(cfg S3Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

// NewMinioFetcher returns a fetcher over bucket.
func NewMinioFetcher(client *minio.Client, bucket string) *MinioFetcher {
	return &MinioFetcher{client: client, bucket: strings.TrimSpace(bucket)}
}

func (f *MinioFetcher) Fetch(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	if f.client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	obj, err := f.client.GetObject(ctx, f.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	if maxBytes > 0 {
		if info, err := obj.Stat(); err == nil && info.Size > maxBytes {
			return nil, ErrTooLarge
		}
	}
	data, err := readCapped(obj, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// HTTPFetcher reads media from an origin serving {base}/{key}.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
}

// NewHTTPFetcher returns a fetcher for the media origin at baseURL.
func NewHTTPFetcher(client *http.Client, baseURL string) *HTTPFetcher {
	return &HTTPFetcher{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+strings.Join(parts, "/"), nil)
	if err != nil {
		return nil, err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", key, res.StatusCode)
	}
	if maxBytes > 0 && res.ContentLength > maxBytes {
		return nil, ErrTooLarge
	}
	return readCapped(res.Body, maxBytes)
}
