package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/IvanBrykalov/cachesim/cache"
)

// OracleRecordSize is the size of one oracleGeneral record:
//
//	uint32 clock time, uint64 object id, uint32 object size,
//	int64 next-access vtime (-1 = never), all little endian.
const OracleRecordSize = 24

// OracleReader reads oracleGeneral records.
type OracleReader struct {
	r   *bufio.Reader
	c   io.Closer
	buf [OracleRecordSize]byte
	n   int64
}

var _ Reader = (*OracleReader)(nil)

// NewOracleReader reads oracleGeneral records from rc.
func NewOracleReader(rc io.ReadCloser) *OracleReader {
	return &OracleReader{r: bufio.NewReaderSize(rc, 1<<16), c: rc}
}

func (o *OracleReader) Read(req *cache.Request) error {
	if _, err := io.ReadFull(o.r, o.buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: record %d truncated", ErrFormat, o.n)
		}
		return err
	}
	o.n++
	b := o.buf[:]
	*req = cache.Request{
		ClockTime:       int64(binary.LittleEndian.Uint32(b[0:4])),
		ID:              binary.LittleEndian.Uint64(b[4:12]),
		Size:            int64(binary.LittleEndian.Uint32(b[12:16])),
		NextAccessVTime: int64(binary.LittleEndian.Uint64(b[16:24])),
	}
	if req.NextAccessVTime < 0 {
		req.NextAccessVTime = cache.NeverAccessed
	}
	return nil
}

func (o *OracleReader) Close() error { return o.c.Close() }

// OracleWriter writes oracleGeneral records. Requests without lookahead
// are written as never accessed again.
type OracleWriter struct {
	w   *bufio.Writer
	buf [OracleRecordSize]byte
}

// NewOracleWriter writes records to w. Call Flush when done.
func NewOracleWriter(w io.Writer) *OracleWriter {
	return &OracleWriter{w: bufio.NewWriterSize(w, 1<<16)}
}

func (o *OracleWriter) Write(req *cache.Request) error {
	if req.Size < 0 || req.Size > 1<<32-1 || req.ClockTime < 0 || req.ClockTime > 1<<32-1 {
		return fmt.Errorf("%w: object %d: size %d or time %d out of range", ErrFormat, req.ID, req.Size, req.ClockTime)
	}
	next := req.NextAccessVTime
	if next < 0 || next == cache.NeverAccessed {
		next = -1
	}
	b := o.buf[:]
	binary.LittleEndian.PutUint32(b[0:4], uint32(req.ClockTime))
	binary.LittleEndian.PutUint64(b[4:12], req.ID)
	binary.LittleEndian.PutUint32(b[12:16], uint32(req.Size))
	binary.LittleEndian.PutUint64(b[16:24], uint64(next))
	_, err := o.w.Write(b)
	return err
}

func (o *OracleWriter) Flush() error { return o.w.Flush() }
