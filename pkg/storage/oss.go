package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/noah-isme/gradeflow-api/pkg/config"
)

// bucketAPI is the subset of *oss.Bucket used by OSSStore.
type bucketAPI interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	DeleteObjects(objectKeys []string, options ...oss.Option) (oss.DeleteObjectsResult, error)
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
	SignURL(objectKey string, method oss.HTTPMethod, expiredInSec int64, options ...oss.Option) (string, error)
}

// OSSStore stores objects in an Alibaba Cloud OSS bucket.
type OSSStore struct {
	bucket     bucketAPI
	endpoint   string
	bucketName string
	publicBase string
	public     bool
}

// NewOSSStore connects to the configured bucket.
func NewOSSStore(cfg config.OSSConfig, public bool) (*OSSStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing oss endpoint, credentials or bucket")
	}

	var (
		client *oss.Client
		err    error
	)
	if cfg.SecurityToken != "" {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret, oss.SecurityToken(cfg.SecurityToken))
	} else {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	}
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket: %w", err)
	}

	return newOSSStore(bucket, cfg, public), nil
}

func newOSSStore(bucket bucketAPI, cfg config.OSSConfig, public bool) *OSSStore {
	return &OSSStore{
		bucket:     bucket,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		public:     public,
	}
}

// Upload puts data at key.
func (s *OSSStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.bucket.PutObject(key, bytes.NewReader(data),
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
	)
}

// Remove deletes keys in a single batch call.
func (s *OSSStore) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.bucket.DeleteObjects(keys, oss.WithContext(ctx))
	return err
}

// Read downloads the object at key.
func (s *OSSStore) Read(ctx context.Context, key string) ([]byte, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return io.ReadAll(body)
}

// PublicURL builds the bucket URL of key, preferring the configured CDN base.
func (s *OSSStore) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, end, key)
}

// SignedURL returns a presigned GET URL valid for ttl.
func (s *OSSStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	url, err := s.bucket.SignURL(key, oss.HTTPGet, int64(ttl.Seconds()))
	if err != nil {
		return "", time.Time{}, err
	}
	return url, time.Now().Add(ttl), nil
}

// Public reports whether the bucket allows anonymous reads.
func (s *OSSStore) Public() bool { return s.public }
