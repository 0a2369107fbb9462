// Package testutil builds synthetic dex, oat and image artifacts for tests.
// The builders encode the formats independently of the reader packages so
// that a reader bug cannot be masked by a matching writer bug.
package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

var le = binary.LittleEndian

// WriteFile writes data to dir/name, creating parent directories, and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

type buffer struct {
	b []byte
}

func (w *buffer) len() int { return len(w.b) }

func (w *buffer) u8(v byte) { w.b = append(w.b, v) }

func (w *buffer) u16(v uint16) { w.b = le.AppendUint16(w.b, v) }

func (w *buffer) u32(v uint32) { w.b = le.AppendUint32(w.b, v) }

func (w *buffer) raw(p []byte) { w.b = append(w.b, p...) }

func (w *buffer) uleb(v uint32) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			w.u8(c | 0x80)
			continue
		}
		w.u8(c)
		return
	}
}

func (w *buffer) align(n int) {
	for len(w.b)%n != 0 {
		w.b = append(w.b, 0)
	}
}

func (w *buffer) put32(off int, v uint32) { le.PutUint32(w.b[off:], v) }
