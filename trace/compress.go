package trace

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec wraps a byte stream in a compression format.
type Codec interface {
	Reader(r io.Reader) (io.ReadCloser, error)
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file suffix with the dot, e.g. ".zst".
	Extension() string
}

// Zstd is the zstd codec.
type Zstd struct{}

func (Zstd) Reader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (Zstd) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
}

func (Zstd) Extension() string { return ".zst" }

// Gzip is the gzip codec.
type Gzip struct{}

func (Gzip) Reader(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }

func (Gzip) Writer(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil }

func (Gzip) Extension() string { return ".gz" }

var codecs = []Codec{Zstd{}, Gzip{}}

// CodecFor returns the codec matching the extension of path, or nil for an
// uncompressed file.
func CodecFor(path string) Codec {
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range codecs {
		if c.Extension() == ext {
			return c
		}
	}
	return nil
}

// stack closes a decoder and the file under it.
type stack struct {
	io.ReadCloser
	under io.Closer
}

func (s stack) Close() error {
	err := s.ReadCloser.Close()
	if uerr := s.under.Close(); err == nil {
		err = uerr
	}
	return err
}

// decompress wraps file according to the extension of path. It returns
// the reader and path without the compression suffix.
func decompress(file io.ReadCloser, path string) (io.ReadCloser, string, error) {
	c := CodecFor(path)
	if c == nil {
		return file, path, nil
	}
	rc, err := c.Reader(file)
	if err != nil {
		return nil, "", fmt.Errorf("creating %s decoder: %w", c.Extension(), err)
	}
	return stack{ReadCloser: rc, under: file}, strings.TrimSuffix(path, filepath.Ext(path)), nil
}
