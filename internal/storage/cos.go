package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/oatdump/pkg/errors"
)

const (
	defaultCOSDomain = "myqcloud.com"
	defaultCOSScheme = "https"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string // bucket name including the appid suffix
	Region    string
	SecretID  string
	SecretKey string
	Domain    string
	Scheme    string
}

func (c *COSConfig) validate() error {
	switch {
	case c.Bucket == "":
		return apperrors.New(apperrors.CodeConfigError, "COS bucket is required")
	case c.Region == "":
		return apperrors.New(apperrors.CodeConfigError, "COS region is required")
	case c.SecretID == "" || c.SecretKey == "":
		return apperrors.New(apperrors.CodeConfigError, "COS credentials are required")
	}
	return nil
}

// endpoints returns the bucket and service URLs for the configured region.
func (c *COSConfig) endpoints() (bucket, service *url.URL, err error) {
	domain, scheme := c.Domain, c.Scheme
	if domain == "" {
		domain = defaultCOSDomain
	}
	if scheme == "" {
		scheme = defaultCOSScheme
	}
	if bucket, err = url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, c.Bucket, c.Region, domain)); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeConfigError, "COS bucket URL", err)
	}
	if service, err = url.Parse(fmt.Sprintf("%s://cos.%s.%s", scheme, c.Region, domain)); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeConfigError, "COS service URL", err)
	}
	return bucket, service, nil
}

// COSStorage keeps artifacts and reports in a Tencent Cloud COS bucket.
type COSStorage struct {
	client *cos.Client
}

func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	bucket, service, err := cfg.endpoints()
	if err != nil {
		return nil, err
	}
	return newCOSStorage(bucket, service, cfg.SecretID, cfg.SecretKey), nil
}

func newCOSStorage(bucket, service *url.URL, secretID, secretKey string) *COSStorage {
	auth := &cos.AuthorizationTransport{SecretID: secretID, SecretKey: secretKey}
	return &COSStorage{
		client: cos.NewClient(&cos.BaseURL{BucketURL: bucket, ServiceURL: service}, &http.Client{Transport: auth}),
	}
}

// Upload stores reader under key. Compressed reports are tagged as binary.
func (s *COSStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType(key)},
	}
	if _, err := s.client.Object.Put(ctx, objectKey(key), reader, opt); err != nil {
		return apperrors.Wrap(apperrors.CodeUploadError, "put cos object "+objectKey(key), err)
	}
	return nil
}

func (s *COSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, objectKey(key), nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "no cos object %s", objectKey(key))
		}
		return nil, apperrors.Wrap(apperrors.CodeDownloadError, "get cos object "+objectKey(key), err)
	}
	return resp.Body, nil
}

func (s *COSStorage) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Object.IsExist(ctx, objectKey(key))
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDownloadError, "head cos object "+objectKey(key), err)
	}
	return ok, nil
}

// GetURL returns the object URL of key below the bucket endpoint.
func (s *COSStorage) GetURL(key string) string {
	return s.client.BaseURL.BucketURL.JoinPath(objectKey(key)).String()
}

// objectKey drops the leading slash of device locations; COS keys are relative.
func objectKey(key string) string {
	return strings.TrimLeft(key, "/")
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	case ".json":
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
