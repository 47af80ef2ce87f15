package csv

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/urbanmobility/tripdk"
)

// Defaults for Source configuration.
const (
	DefaultDelimiter      = ','
	DefaultQuote          = '"'
	DefaultChunkSize      = 64 << 10
	DefaultErrorTolerance = 0.01
)

// Source satisfies the tripdk.Source interface for CSV data. The file is
// read in fixed-size chunks and tokenized with explicit cross-chunk parser
// state, so quoted fields may contain delimiters, escaped quotes, and line
// terminators, and may span any number of chunk boundaries. Each call to
// Record returns one line's fields as a map keyed by the header row (or
// synthesized positional names when the header is skipped).
//
// Row-level problems - field count not matching the header, unterminated
// quotes, oversized fields - come back from Record as *tripdk.RowError and
// the parse continues. When the fraction of such lines exceeds the
// configured error tolerance, Record returns a *ToleranceError and the
// remaining parse is aborted.
//
// Unlike some CSV readers, empty field values are kept in the record map so
// consumers can distinguish a present-but-empty column from a missing one.
//
// A Source reads exactly one resource; call Reset before reusing it.
// Source is safe for concurrent use, but records are handed out in file
// order to whichever caller asks first.
type Source struct {
	opener       OpenStringer
	delimiter    byte
	quote        byte
	escape       byte
	chunkSize    int
	skipEmpty    bool
	skipHeader   bool
	maxFieldSize int
	tolerance    float64
	enc          encoding.Encoding

	mu      sync.Mutex
	rc      io.ReadCloser
	chunk   []byte
	st      ParserState
	header  []string
	pending []item
	stats   tripdk.Stats
	aborted bool
	done    bool
}

type item struct {
	row map[string]string
	err error
}

// NewSource creates a chunked CSV Source. The input and any non-default
// parse parameters are set with Options, e.g.
//
//	src := csv.NewSource(csv.WithURL("trips.csv"), csv.WithErrorTolerance(0.05))
func NewSource(options ...Option) *Source {
	src := &Source{
		delimiter: DefaultDelimiter,
		quote:     DefaultQuote,
		escape:    DefaultQuote,
		chunkSize: DefaultChunkSize,
		skipEmpty: true,
		tolerance: DefaultErrorTolerance,
	}
	for _, opt := range options {
		opt(src)
	}
	return src
}

// Option is a functional option to pass to NewSource.
type Option func(*Source)

// WithURL returns an Option setting the resource a Source reads from. The
// URL may be an HTTP URL or a local file path.
func WithURL(url string) Option {
	return func(s *Source) {
		s.opener = urlOpener(url)
	}
}

// WithOpenStringer returns an Option setting the resource a Source reads
// from to an arbitrary OpenStringer (e.g. an S3 object, see aws/s3).
func WithOpenStringer(os OpenStringer) Option {
	return func(s *Source) {
		s.opener = os
	}
}

// WithDelimiter sets the field delimiter. Defaults to ','.
func WithDelimiter(d byte) Option {
	return func(s *Source) {
		s.delimiter = d
	}
}

// WithQuote sets the quote and escape byte. Defaults to '"'.
func WithQuote(q byte) Option {
	return func(s *Source) {
		s.quote = q
		s.escape = q
	}
}

// WithEscape sets a distinct escape byte for literal quotes inside quoted
// fields. Defaults to the quote byte (RFC-4180 doubling).
func WithEscape(e byte) Option {
	return func(s *Source) {
		s.escape = e
	}
}

// WithChunkSize sets the read chunk size in bytes. Defaults to 64KiB.
func WithChunkSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSkipEmptyLines controls whether blank lines are skipped (and counted)
// rather than parsed. Defaults to true.
func WithSkipEmptyLines(skip bool) Option {
	return func(s *Source) {
		s.skipEmpty = skip
	}
}

// WithSkipHeader treats the first line as data rather than a header. Field
// names are synthesized as field_0, field_1, ... from the first line's
// field count.
func WithSkipHeader(skip bool) Option {
	return func(s *Source) {
		s.skipHeader = skip
	}
}

// WithMaxFieldSize sets an upper bound on a single field's size in bytes;
// lines with a larger field are counted as row errors. 0 (the default)
// means no bound.
func WithMaxFieldSize(n int) Option {
	return func(s *Source) {
		s.maxFieldSize = n
	}
}

// WithEncoding sets the character encoding of the input, which is decoded
// to UTF-8 before tokenizing. nil (the default) means the input is already
// UTF-8. The encoding is configuration, never sniffed from the data.
func WithEncoding(enc encoding.Encoding) Option {
	return func(s *Source) {
		s.enc = enc
	}
}

// WithErrorTolerance sets the fraction of malformed lines permitted before
// the whole parse aborts with a *ToleranceError. 0 aborts on the first
// malformed line; 1.0 never aborts due to row errors. Defaults to 0.01.
func WithErrorTolerance(tol float64) Option {
	return func(s *Source) {
		s.tolerance = tol
	}
}

// ToleranceError is the fatal error raised when the fraction of malformed
// lines exceeds the configured error tolerance. It aborts the remaining
// parse and carries the computed rate.
type ToleranceError struct {
	Rate      float64
	Tolerance float64
	Line      int
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("error rate %.4f exceeds tolerance %.4f at line %d - aborting parse",
		e.Rate, e.Tolerance, e.Line)
}

// Opener is an interface to a resource which can be Opened and the returned
// ReadCloser subsequently read from the beginning.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// OpenStringer is an Opener which also has a String method returning the
// name of the resource being opened (e.g. a file, URL, or object key).
type OpenStringer interface {
	fmt.Stringer
	Opener
}

// Sizer is optionally implemented by openers which know the total resource
// size up front; it feeds progress percentages.
type Sizer interface {
	Size() int64
}

// urlOpener turns a URL or file path (string) into an OpenStringer.
type urlOpener string

func (u urlOpener) Open() (io.ReadCloser, error) {
	url := string(u)
	if strings.HasPrefix(url, "http") {
		resp, err := http.Get(url)
		if err != nil {
			return nil, errors.Wrap(err, "getting via http")
		}
		return resp.Body, nil
	}
	f, err := os.Open(url)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (u urlOpener) String() string { return string(u) }

// decodedReadCloser layers a charset decoder over the opened resource while
// keeping its Close.
type decodedReadCloser struct {
	io.Reader
	io.Closer
}

// Size returns the local file size, 0 for HTTP resources.
func (u urlOpener) Size() int64 {
	if strings.HasPrefix(string(u), "http") {
		return 0
	}
	info, err := os.Stat(string(u))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Record returns the next row of the file as a map[string]string keyed by
// header name, one of the error kinds described on Source, or io.EOF once
// the input is exhausted.
func (c *Source) Record() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if len(c.pending) > 0 {
			it := c.pending[0]
			c.pending = c.pending[1:]
			return it.row, it.err
		}
		if c.done {
			return nil, io.EOF
		}
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
}

// Stats returns a snapshot of the running parse statistics.
func (c *Source) Stats() tripdk.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.stats
	snap.Errors = append([]string(nil), c.stats.Errors...)
	return snap
}

// Reset prepares the source for a fresh pass over its resource, discarding
// all parser state and statistics. Reusing a source for a second pass
// without Reset is unsafe.
func (c *Source) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.st = ParserState{}
	c.header = nil
	c.pending = nil
	c.stats = tripdk.Stats{}
	c.aborted = false
	c.done = false
}

func (c *Source) open() error {
	if c.opener == nil {
		return errors.New("no input configured - use WithURL or WithOpenStringer")
	}
	rc, err := c.opener.Open()
	if err != nil {
		return errors.Wrapf(err, "opening %s", c.opener)
	}
	c.rc = rc
	if c.enc != nil {
		c.rc = decodedReadCloser{
			Reader: transform.NewReader(rc, c.enc.NewDecoder()),
			Closer: rc,
		}
	}
	c.stats.Start = time.Now()
	if sz, ok := c.opener.(Sizer); ok {
		c.stats.TotalBytes = sz.Size()
	}
	return nil
}

// fill reads one chunk and tokenizes it, queueing completed rows and row
// errors. Requesting one chunk at a time is what gives the pipeline its
// backpressure: the reader never gets ahead of the parser.
func (c *Source) fill() error {
	if c.rc == nil {
		if err := c.open(); err != nil {
			c.done = true
			return err
		}
	}
	if c.chunk == nil {
		c.chunk = make([]byte, c.chunkSize)
	}
	n, err := c.rc.Read(c.chunk)
	if n > 0 {
		c.stats.BytesProcessed += int64(n)
		st, lines := Consume(c.st, c.chunk[:n], c.quote, c.escape)
		c.st = st
		c.processLines(lines)
	}
	if err == io.EOF {
		st, tail := Flush(c.st)
		c.st = st
		if len(tail) > 0 {
			c.processLines([][]byte{tail})
		}
		c.closeLocked()
		c.done = true
		return nil
	}
	if err != nil {
		c.closeLocked()
		c.done = true
		return errors.Wrapf(err, "reading %s", c.opener)
	}
	return nil
}

func (c *Source) processLines(lines [][]byte) {
	for _, line := range lines {
		if c.aborted {
			return
		}
		c.stats.TotalLines++
		if len(bytes.TrimSpace(line)) == 0 {
			c.stats.EmptyLines++
			if c.skipEmpty {
				continue
			}
		}
		fields, err := splitFields(line, c.delimiter, c.quote, c.escape)
		if err != nil {
			c.rowError(err)
			continue
		}
		if big := c.oversized(fields); big >= 0 {
			c.rowError(errors.Errorf("field %d exceeds max field size %d", big, c.maxFieldSize))
			continue
		}
		if c.header == nil {
			if !c.skipHeader {
				if err := validateHeader(fields); err != nil {
					c.abort(errors.Wrapf(err, "validating header of %s", c.opener))
					return
				}
				c.header = fields
				continue
			}
			c.header = syntheticHeader(len(fields))
			// first line is data, fall through
		}
		row, err := c.toRow(fields)
		if err != nil {
			c.rowError(err)
			continue
		}
		c.stats.TotalRecords++
		// provenance under the delimiter key, which can never be a header name
		row[string(c.delimiter)] = fmt.Sprintf("%s:line%d", c.opener, c.stats.TotalLines)
		c.pending = append(c.pending, item{row: row})
	}
}

func (c *Source) toRow(fields []string) (map[string]string, error) {
	if len(fields) != len(c.header) {
		return nil, errors.Errorf("field count %d does not match header count %d", len(fields), len(c.header))
	}
	row := make(map[string]string, len(c.header)+1)
	for i, h := range c.header {
		row[h] = fields[i]
	}
	return row, nil
}

// oversized returns the index of the first field exceeding maxFieldSize,
// or -1.
func (c *Source) oversized(fields []string) int {
	if c.maxFieldSize <= 0 {
		return -1
	}
	for i, f := range fields {
		if len(f) > c.maxFieldSize {
			return i
		}
	}
	return -1
}

// rowError queues a recoverable line-level error and trips the tolerance
// circuit breaker when the running error rate exceeds the configured
// tolerance. The breaker is a global decision over the whole parse, not a
// per-line one.
func (c *Source) rowError(err error) {
	c.stats.InvalidRecords++
	c.stats.RecordError(err)
	line := int(c.stats.TotalLines)
	c.pending = append(c.pending, item{err: &tripdk.RowError{Line: line, Err: err}})
	if rate := c.stats.ErrorRate(); rate > c.tolerance {
		c.abort(&ToleranceError{Rate: rate, Tolerance: c.tolerance, Line: line})
	}
}

// abort queues a fatal error and stops all further parsing.
func (c *Source) abort(err error) {
	c.aborted = true
	c.done = true
	c.stats.RecordError(err)
	c.pending = append(c.pending, item{err: err})
	c.closeLocked()
}

func (c *Source) closeLocked() {
	if c.rc != nil {
		c.rc.Close()
		c.rc = nil
	}
}

func syntheticHeader(n int) []string {
	header := make([]string, n)
	for i := range header {
		header[i] = fmt.Sprintf("field_%d", i)
	}
	return header
}
