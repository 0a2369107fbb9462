// Package artifact provides read-only views over artifact files.
package artifact

import (
	"fmt"
	"os"
)

// Mapping is a read-only view of one artifact file. The bytes stay valid
// until Close.
type Mapping struct {
	path   string
	data   []byte
	mapped bool
}

// Open maps path read-only. Empty files yield an empty view.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return &Mapping{path: path}, nil
	}

	data, mapped, err := mapFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return &Mapping{path: path, data: data, mapped: mapped}, nil
}

// FromBytes wraps an in-memory artifact, e.g. one fetched from object storage.
func FromBytes(path string, data []byte) *Mapping {
	return &Mapping{path: path, data: data}
}

// Path returns the file the mapping was created from.
func (m *Mapping) Path() string { return m.path }

// Bytes returns the mapped contents. Callers must not modify them.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the artifact length in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Close releases the mapping.
func (m *Mapping) Close() error {
	if m == nil || !m.mapped {
		return nil
	}
	data := m.data
	m.data, m.mapped = nil, false
	return unmapFile(data)
}
