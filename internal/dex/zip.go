package dex

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	apperrors "github.com/oatdump/pkg/errors"
)

// ClassesEntry is the archive member holding the primary dex file.
const ClassesEntry = "classes.dex"

var zipMagic = []byte("PK\x03\x04")

// OpenLocation opens data as a dex file, extracting classes.dex first when
// data is a zip archive.
func OpenLocation(data []byte, location string) (*File, error) {
	if bytes.HasPrefix(data, zipMagic) {
		extracted, err := ExtractClasses(data)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidArtifact, "archive "+location, err)
		}
		data = extracted
	}
	return Open(data, location)
}

// ExtractClasses returns the contents of classes.dex from a zip archive.
func ExtractClasses(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != ClassesEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", ClassesEntry, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("archive has no %s", ClassesEntry)
}
