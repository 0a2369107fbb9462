package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	apperrors "github.com/oatdump/pkg/errors"
)

// LocalStorage serves keys as files below a root directory, typically a
// host copy of a device's filesystem. Keys cannot escape the root unless the
// root is / itself.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, apperrors.New(apperrors.CodeConfigError, "local storage path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "local storage root", err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "local storage root %s is not a directory", root)
	}
	return &LocalStorage{root: filepath.Clean(root)}, nil
}

// Root returns the directory keys resolve under.
func (s *LocalStorage) Root() string { return s.root }

// Upload writes the object to a temporary file and renames it into place,
// so readers never observe a partial report.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeUploadError, "create parent of "+key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUploadError, "create "+key, err)
	}
	_, err = io.Copy(tmp, reader)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return apperrors.Wrap(apperrors.CodeUploadError, "write "+key, err)
	}
	return nil
}

func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, apperrors.Newf(apperrors.CodeNotFound, "no file for %s under %s", key, s.root)
	case err != nil:
		return nil, apperrors.Wrap(apperrors.CodeDownloadError, "open "+key, err)
	}
	return f, nil
}

// Exists reports whether a regular file is stored at key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.path(key))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, apperrors.Wrap(apperrors.CodeDownloadError, "stat "+key, err)
	}
	return info.Mode().IsRegular(), nil
}

// GetURL returns the host path of key.
func (s *LocalStorage) GetURL(key string) string {
	return s.path(key)
}

// path maps key below the root. Over the filesystem root a relative key is
// taken relative to the working directory, as a shell would.
func (s *LocalStorage) path(key string) string {
	if s.root == string(filepath.Separator) && !path.IsAbs(key) {
		if abs, err := filepath.Abs(filepath.FromSlash(key)); err == nil {
			return abs
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+key)))
}
