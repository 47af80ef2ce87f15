// Package ingest wires a complete trip import: chunked csv source,
// validation strategy, batch accumulation, and a local bolt sink, with
// progress reporting along the way.
package ingest

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/urbanmobility/tripdk"
	s3opener "github.com/urbanmobility/tripdk/aws/s3"
	"github.com/urbanmobility/tripdk/boltdb"
	"github.com/urbanmobility/tripdk/csv"
	"github.com/urbanmobility/tripdk/termstat"
	"github.com/urbanmobility/tripdk/trip"
)

// Main holds the configuration for a trip import run.
type Main struct {
	Files          []string      `help:"Paths or URLs of trip CSVs. http(s):// and s3:// URLs are supported."`
	Strategy       string        `help:"Validation strategy: strict or inclusive."`
	BatchSize      int           `help:"Records per batch delivered to the sink."`
	ChunkSize      int           `help:"Read chunk size in bytes."`
	Delimiter      string        `help:"Field delimiter."`
	Encoding       string        `help:"Character encoding of the input by IANA name. Defaults to utf-8."`
	SkipHeader     bool          `help:"Treat the first line as data rather than a header."`
	ErrorTolerance float64       `help:"Fraction of malformed lines permitted before aborting."`
	MaxFieldSize   int           `help:"Maximum size of a single field in bytes. 0 means unbounded."`
	Bolt           string        `help:"Bolt database file to write batches to. Empty logs batch sizes instead."`
	Region         string        `help:"AWS region for s3:// URLs."`
	Progress       time.Duration `help:"Minimum interval between progress reports."`
	TermStats      bool          `help:"Continuously rewrite a stats line on stderr instead of logging progress."`
	Verbose        bool          `help:"Log recoverable row errors as they happen."`

	Stats tripdk.Statter `flag:"-"`
	Log   tripdk.Logger  `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Strategy:       "inclusive",
		BatchSize:      tripdk.DefaultBatchSize,
		ChunkSize:      csv.DefaultChunkSize,
		Delimiter:      ",",
		Encoding:       "utf-8",
		ErrorTolerance: csv.DefaultErrorTolerance,
		Region:         "us-east-1",
		Progress:       time.Second,
		Stats:          tripdk.NopStatter{},
	}
}

// Run imports every configured file in order through one shared batcher, so
// batch numbers stay monotonic across files.
func (m *Main) Run() error {
	if len(m.Files) == 0 {
		return errors.New("no input files - set --files")
	}
	logger := m.logger()

	enricher, err := m.enricher(logger)
	if err != nil {
		return err
	}

	sink, closeSink, err := m.sink(logger)
	if err != nil {
		return err
	}
	defer closeSink()

	batcher := tripdk.NewBatcher(m.BatchSize, sink)
	batcher.SetLogger(logger)

	if m.TermStats {
		ts := termstat.NewCollector(os.Stderr, m.Progress)
		defer ts.Close()
		m.Stats = ts
	}

	for _, file := range m.Files {
		if err := m.runFile(file, enricher, batcher, logger); err != nil {
			return errors.Wrapf(err, "importing %s", file)
		}
	}
	return nil
}

func (m *Main) runFile(file string, enricher tripdk.Enricher, batcher *tripdk.Batcher, logger tripdk.Logger) error {
	delim := byte(',')
	if m.Delimiter != "" {
		delim = m.Delimiter[0]
	}
	opts := []csv.Option{
		csv.WithDelimiter(delim),
		csv.WithChunkSize(m.ChunkSize),
		csv.WithSkipHeader(m.SkipHeader),
		csv.WithErrorTolerance(m.ErrorTolerance),
		csv.WithMaxFieldSize(m.MaxFieldSize),
	}
	enc, err := m.encoding()
	if err != nil {
		return err
	}
	if enc != nil {
		opts = append(opts, csv.WithEncoding(enc))
	}
	if strings.HasPrefix(file, "s3://") {
		opener, err := s3opener.ParseURL(file, s3opener.OptRegion(m.Region))
		if err != nil {
			return err
		}
		opts = append(opts, csv.WithOpenStringer(opener))
	} else {
		opts = append(opts, csv.WithURL(file))
	}
	src := csv.NewSource(opts...)

	ingester := tripdk.NewIngester(src, enricher, batcher)
	ingester.ProgressInterval = m.Progress
	ingester.Stats = m.Stats
	ingester.Log = logger
	if !m.TermStats {
		ingester.OnProgress = func(p tripdk.Progress) {
			logger.Printf("%s: %d records (%d valid, %d invalid) %.1f%% %.0f rec/s %.2f MB/s",
				file, p.Records, p.ValidRecords, p.InvalidRecords, p.Percent, p.RecordsPerSec, p.MBPerSec)
		}
	}
	if m.Verbose {
		ingester.OnError = func(err error) {
			logger.Printf("recoverable: %v", err)
		}
	}
	ingester.OnComplete = func(s tripdk.Stats) {
		logger.Printf("%s: done in %s: %d lines, %d records (%d valid, %d invalid, %d empty), %d batches",
			file, s.ProcessingTime().Round(time.Millisecond), s.TotalLines, s.TotalRecords,
			s.ValidRecords, s.InvalidRecords, s.EmptyLines, batcher.Batches())
	}
	return ingester.Run(context.Background())
}

// encoding resolves the configured IANA charset name. UTF-8 (the default)
// needs no decoding and resolves to nil.
func (m *Main) encoding() (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(m.Encoding)) {
	case "", "utf8", "utf-8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(m.Encoding)
	if err != nil || enc == nil {
		return nil, errors.Errorf("unknown encoding %q", m.Encoding)
	}
	return enc, nil
}

func (m *Main) enricher(logger tripdk.Logger) (tripdk.Enricher, error) {
	switch m.Strategy {
	case "strict":
		v := trip.NewStrict()
		v.Log = logger
		return v, nil
	case "inclusive":
		v := trip.NewInclusive()
		v.Log = logger
		return v, nil
	default:
		return nil, errors.Errorf("unknown strategy %q (want strict or inclusive)", m.Strategy)
	}
}

func (m *Main) sink(logger tripdk.Logger) (tripdk.BatchSink, func(), error) {
	if m.Bolt == "" {
		sink := tripdk.BatchSinkFunc(func(records []map[string]interface{}, batchNum int) error {
			logger.Printf("batch %d: %d records", batchNum, len(records))
			return nil
		})
		return sink, func() {}, nil
	}
	bs, err := boltdb.NewSink(m.Bolt)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening bolt sink")
	}
	return bs, func() {
		if err := bs.Close(); err != nil {
			logger.Printf("closing bolt sink: %v", err)
		}
	}, nil
}

func (m *Main) logger() tripdk.Logger {
	if m.Log != nil {
		return m.Log
	}
	std := log.New(os.Stderr, "", log.LstdFlags)
	if m.Verbose {
		return tripdk.VerboseLogger{Logger: std}
	}
	return tripdk.StdLogger{Logger: std}
}
