// Package storage provides the backends companion artifacts are fetched
// from and rendered reports are published to.
package storage

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/oatdump/pkg/config"
	apperrors "github.com/oatdump/pkg/errors"
)

// Storage is a flat key/object store. Keys are slash separated; a leading
// slash is allowed so device locations can be used as keys directly.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download opens the object at key. A missing object yields an error
	// with code NOT_FOUND.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns where key can be reached from outside the process.
	GetURL(key string) string
}

// StorageType names a storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

type factory func(cfg *config.StorageConfig) (Storage, error)

var backends = map[StorageType]factory{
	StorageTypeLocal: func(cfg *config.StorageConfig) (Storage, error) {
		return NewLocalStorage(cfg.LocalPath)
	},
	StorageTypeCOS: func(cfg *config.StorageConfig) (Storage, error) {
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	},
}

// Types lists the registered backend names.
func Types() []string {
	names := make([]string, 0, len(backends))
	for t := range backends {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// NewStorage creates the backend selected by cfg. An empty type means local.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "storage config is nil")
	}
	typ := StorageType(strings.ToLower(cfg.Type))
	if typ == "" {
		typ = StorageTypeLocal
	}
	newBackend, ok := backends[typ]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeConfigError,
			"unsupported storage type %q (want one of %s)", cfg.Type, strings.Join(Types(), ", "))
	}
	return newBackend(cfg)
}
