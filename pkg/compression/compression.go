// Package compression wraps report and artifact streams in gzip or zstd.
package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type is a stream compression format.
type Type uint8

const (
	TypeNone Type = iota
	TypeGzip
	TypeZstd
)

// Level trades speed for ratio; each codec maps it to its own scale.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 3
	LevelBest    Level = 9
)

type codec struct {
	names   []string // first is canonical
	ext     string
	magic   []byte
	encoder func(w io.Writer, level Level) (io.WriteCloser, error)
	decoder func(r io.Reader) (io.ReadCloser, error)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var codecs = [...]codec{
	TypeNone: {
		names: []string{"none", ""},
		encoder: func(w io.Writer, _ Level) (io.WriteCloser, error) {
			return nopWriteCloser{w}, nil
		},
		decoder: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	},
	TypeGzip: {
		names: []string{"gzip", "gz"},
		ext:   ".gz",
		magic: []byte{0x1f, 0x8b},
		encoder: func(w io.Writer, level Level) (io.WriteCloser, error) {
			l := gzip.DefaultCompression
			switch level {
			case LevelFastest:
				l = gzip.BestSpeed
			case LevelBest:
				l = gzip.BestCompression
			}
			return gzip.NewWriterLevel(w, l)
		},
		decoder: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
	},
	TypeZstd: {
		names: []string{"zstd", "zst"},
		ext:   ".zst",
		magic: []byte{0x28, 0xb5, 0x2f, 0xfd},
		encoder: func(w io.Writer, level Level) (io.WriteCloser, error) {
			l := zstd.SpeedDefault
			switch level {
			case LevelFastest:
				l = zstd.SpeedFastest
			case LevelBest:
				l = zstd.SpeedBestCompression
			}
			return zstd.NewWriter(w, zstd.WithEncoderLevel(l))
		},
		decoder: func(r io.Reader) (io.ReadCloser, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		},
	},
}

// sniffLen covers the longest magic.
const sniffLen = 4

func (t Type) codec() (*codec, error) {
	if int(t) >= len(codecs) {
		return nil, fmt.Errorf("unknown compression type %d", t)
	}
	return &codecs[t], nil
}

// String returns the configuration name of t.
func (t Type) String() string {
	if c, err := t.codec(); err == nil {
		return c.names[0]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Extension returns the conventional file suffix for t.
func (t Type) Extension() string {
	if c, err := t.codec(); err == nil {
		return c.ext
	}
	return ""
}

// ParseType accepts a codec name or its file suffix without the dot.
func ParseType(name string) (Type, error) {
	for t := range codecs {
		for _, n := range codecs[t].names {
			if n == name {
				return Type(t), nil
			}
		}
	}
	return TypeNone, fmt.Errorf("unknown compression type %q", name)
}

// NewWriter wraps w in a compressing writer. Closing the returned writer
// flushes the compressed stream but does not close w.
func NewWriter(w io.Writer, t Type, level Level) (io.WriteCloser, error) {
	c, err := t.codec()
	if err != nil {
		return nil, err
	}
	cw, err := c.encoder(w, level)
	if err != nil {
		return nil, fmt.Errorf("%s encoder: %w", t, err)
	}
	return cw, nil
}

// DetectType identifies the format from its magic bytes.
func DetectType(data []byte) Type {
	for t := range codecs {
		if m := codecs[t].magic; m != nil && bytes.HasPrefix(data, m) {
			return Type(t)
		}
	}
	return TypeNone
}

// NewReader sniffs r and returns a reader yielding the decompressed stream.
// Uncompressed input passes through.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("sniff compression: %w", err)
	}
	t := DetectType(head)
	rc, err := codecs[t].decoder(br)
	if err != nil {
		return nil, fmt.Errorf("%s decoder: %w", t, err)
	}
	return rc, nil
}

// Decompress fully decodes data if it carries a known compression header.
func Decompress(data []byte) ([]byte, error) {
	if DetectType(data) == TypeNone {
		return data, nil
	}
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
