// Package trace reads request traces for the simulator.
//
// Two on-disk formats are supported: CSV text with configurable columns and
// the 24-byte oracleGeneral binary record, either optionally compressed
// with zstd (.zst) or gzip (.gz). Synthetic Zipf workloads with optional
// scans are generated in memory. Belady-style policies need the next-access
// time of every request; ReadAll plus AnnotateNextAccess computes it for
// traces that do not carry it.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/IvanBrykalov/cachesim/cache"
)

// Reader yields one request per Read and io.EOF after the last one.
type Reader interface {
	Read(req *cache.Request) error
	Close() error
}

// Format selects the record layout of a trace file.
type Format int

const (
	// Auto picks the format from the file extension (after stripping a
	// compression suffix): ".csv" and ".txt" are CSV, anything else is
	// oracleGeneral.
	Auto Format = iota
	CSV
	OracleGeneral
)

var formatNames = []string{"auto", "csv", "oracleGeneral"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat resolves a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	for i, n := range formatNames {
		if strings.EqualFold(n, s) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("trace: unknown format %q (want %s)", s, strings.Join(formatNames, ", "))
}

// ErrFormat is wrapped by every malformed-record error.
var ErrFormat = errors.New("trace: malformed record")

// Open opens the trace at path. Compression is detected from the
// extension; f == Auto detects the record format the same way.
func Open(path string, f Format, csvOpt CSVOptions) (Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	rc, base, err := decompress(file, path)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if f == Auto {
		f = detect(base)
	}
	switch f {
	case CSV:
		return NewCSVReader(rc, csvOpt)
	case OracleGeneral:
		return NewOracleReader(rc), nil
	}
	_ = rc.Close()
	return nil, fmt.Errorf("trace: unsupported format %v", f)
}

func detect(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return CSV
	}
	return OracleGeneral
}

// ReadAll drains r into memory. It does not close r.
func ReadAll(r Reader) ([]cache.Request, error) {
	var reqs []cache.Request
	for {
		var req cache.Request
		err := r.Read(&req)
		if errors.Is(err, io.EOF) {
			return reqs, nil
		}
		if err != nil {
			return reqs, err
		}
		reqs = append(reqs, req)
	}
}

// AnnotateNextAccess sets NextAccessVTime on every request to the vtime of
// the next request for the same id, or cache.NeverAccessed. Request i is
// replayed at vtime i+1.
func AnnotateNextAccess(reqs []cache.Request) {
	next := make(map[uint64]int64, len(reqs)/4)
	for i := len(reqs) - 1; i >= 0; i-- {
		id := reqs[i].ID
		if vt, ok := next[id]; ok {
			reqs[i].NextAccessVTime = vt
		} else {
			reqs[i].NextAccessVTime = cache.NeverAccessed
		}
		next[id] = int64(i + 1)
	}
}

// SliceReader replays requests held in memory. Several SliceReaders may
// share one slice.
type SliceReader struct {
	reqs []cache.Request
	pos  int
}

var _ Reader = (*SliceReader)(nil)

// NewSliceReader returns a reader over reqs.
func NewSliceReader(reqs []cache.Request) *SliceReader {
	return &SliceReader{reqs: reqs}
}

func (s *SliceReader) Read(req *cache.Request) error {
	if s.pos >= len(s.reqs) {
		return io.EOF
	}
	*req = s.reqs[s.pos]
	s.pos++
	return nil
}

// Len returns the total number of requests.
func (s *SliceReader) Len() int { return len(s.reqs) }

func (s *SliceReader) Close() error { return nil }
