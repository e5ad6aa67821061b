package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/util"
)

// CSVOptions describe the column layout of a CSV trace. Columns are
// 1-based; zero means the column is absent. The zero value reads
// "time,id,size" rows with numeric ids.
type CSVOptions struct {
	TimeCol int
	IDCol   int
	SizeCol int
	TTLCol  int
	// NextCol holds the next-access vtime; -1 in the file means never.
	NextCol int

	// Header skips the first row.
	Header bool
	// Delimiter defaults to ','.
	Delimiter rune
	// HashIDs hashes the id column as a string instead of parsing it as a
	// number.
	HashIDs bool
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.TimeCol == 0 && o.IDCol == 0 && o.SizeCol == 0 {
		o.TimeCol, o.IDCol, o.SizeCol = 1, 2, 3
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	return o
}

// ParseCSVOptions reads "time-col=1,id-col=2,size-col=3,ttl-col=0,
// next-col=0,header=true,delimiter=;,hash-ids=true". Unknown keys are
// rejected.
func ParseCSVOptions(s string) (CSVOptions, error) {
	a, err := cache.ParseArgs("csv", s)
	if err != nil {
		return CSVOptions{}, err
	}
	o := CSVOptions{
		TimeCol: int(a.Int("time-col", 1)),
		IDCol:   int(a.Int("id-col", 2)),
		SizeCol: int(a.Int("size-col", 3)),
		TTLCol:  int(a.Int("ttl-col", 0)),
		NextCol: int(a.Int("next-col", 0)),
		Header:  a.Bool("header", false),
		HashIDs: a.Bool("hash-ids", false),
	}
	d := a.String("delimiter", ",")
	if d == `\t` || strings.EqualFold(d, "tab") {
		d = "\t"
	}
	a.Check(len([]rune(d)) == 1, "delimiter", "must be one character")
	a.Check(o.IDCol > 0, "id-col", "must be > 0")
	if err := a.Err(); err != nil {
		return CSVOptions{}, err
	}
	o.Delimiter = []rune(d)[0]
	return o, nil
}

// CSVReader reads a CSV trace.
type CSVReader struct {
	r   *csv.Reader
	c   io.Closer
	opt CSVOptions
}

var _ Reader = (*CSVReader)(nil)

// NewCSVReader reads rows from rc laid out as described by opt.
func NewCSVReader(rc io.ReadCloser, opt CSVOptions) (*CSVReader, error) {
	opt = opt.withDefaults()
	r := csv.NewReader(rc)
	r.Comma = opt.Delimiter
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.TrimLeadingSpace = true
	cr := &CSVReader{r: r, c: rc, opt: opt}
	if opt.Header {
		if _, err := r.Read(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading csv header: %w", err)
		}
	}
	return cr, nil
}

func (cr *CSVReader) Read(req *cache.Request) error {
	rec, err := cr.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	line, _ := cr.r.FieldPos(0)
	field := func(col int) (string, error) {
		if col > len(rec) {
			return "", fmt.Errorf("%w: line %d: %d fields, need column %d", ErrFormat, line, len(rec), col)
		}
		return rec[col-1], nil
	}
	num := func(col int, name string) (int64, error) {
		if col == 0 {
			return 0, nil
		}
		s, err := field(col)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: line %d: %s %q", ErrFormat, line, name, s)
		}
		return n, nil
	}

	*req = cache.Request{Size: 1, NextAccessVTime: cache.NoLookahead}
	idStr, err := field(cr.opt.IDCol)
	if err != nil {
		return err
	}
	if cr.opt.HashIDs {
		req.ID = util.Fnv64a(idStr)
	} else if req.ID, err = strconv.ParseUint(idStr, 10, 64); err != nil {
		return fmt.Errorf("%w: line %d: id %q (set hash-ids for string keys)", ErrFormat, line, idStr)
	}
	if req.ClockTime, err = num(cr.opt.TimeCol, "time"); err != nil {
		return err
	}
	if cr.opt.SizeCol != 0 {
		if req.Size, err = num(cr.opt.SizeCol, "size"); err != nil {
			return err
		}
	}
	if req.TTL, err = num(cr.opt.TTLCol, "ttl"); err != nil {
		return err
	}
	if cr.opt.NextCol != 0 {
		if req.NextAccessVTime, err = num(cr.opt.NextCol, "next access"); err != nil {
			return err
		}
		if req.NextAccessVTime < 0 {
			req.NextAccessVTime = cache.NeverAccessed
		}
	}
	return nil
}

func (cr *CSVReader) Close() error { return cr.c.Close() }
