// Package writer serializes dump summaries to JSON files, optionally compressed.
package writer

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oatdump/pkg/compression"
	apperrors "github.com/oatdump/pkg/errors"
)

// JSONWriter encodes values of T, one document per call.
type JSONWriter[T any] struct {
	indent string
}

func NewJSONWriter[T any]() *JSONWriter[T] { return &JSONWriter[T]{} }

// NewPrettyJSONWriter indents nested values by two spaces.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] { return &JSONWriter[T]{indent: "  "} }

// Write encodes v to out followed by a newline.
func (w *JSONWriter[T]) Write(v T, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", w.indent)
	return enc.Encode(v)
}

// WriteToFile replaces path with the encoding of v. The suffix of path picks
// the compression, see TypeForPath. The file appears complete or not at all.
func (w *JSONWriter[T]) WriteToFile(v T, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "create "+path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw, err := compression.NewWriter(tmp, TypeForPath(path), compression.LevelDefault)
	if err != nil {
		return err
	}
	if err = w.Write(v, cw); err != nil {
		cw.Close()
		return apperrors.Wrap(apperrors.CodeInvalidInput, "encode "+path, err)
	}
	if err = cw.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "flush "+path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "chmod "+path, err)
	}
	if err = tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "close "+path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "rename "+path, err)
	}
	return nil
}

// TypeForPath maps a ".zst" or ".gz" suffix to its compression; anything
// else is written plain.
func TypeForPath(path string) compression.Type {
	for _, t := range []compression.Type{compression.TypeZstd, compression.TypeGzip} {
		if strings.HasSuffix(path, t.Extension()) {
			return t
		}
	}
	return compression.TypeNone
}
