package tripdk

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Progress is a throttled snapshot of a running ingest handed to the
// OnProgress callback.
type Progress struct {
	BytesProcessed int64
	TotalBytes     int64
	Records        uint64
	ValidRecords   uint64
	InvalidRecords uint64
	Percent        float64 // 0 when the input size is unknown
	RecordsPerSec  float64
	MBPerSec       float64
	Elapsed        time.Duration
}

// Ingester drives a Source, an Enricher and a Batcher as one strictly
// ordered pull pipeline. Records are delivered to the batch sink in file
// order and batches are numbered monotonically; there is no parallelism
// across records because cross-chunk quote-state tracking in the tokenizer
// depends on sequential processing. One Ingester drives one run; the
// tokenizer must be Reset before it can be reused for another file.
type Ingester struct {
	// BufferSize is the depth of the channel between the tokenize stage and
	// the enrich/batch stage. It bounds how far the reader can get ahead of
	// the enrichment, preserving backpressure.
	BufferSize int

	// ProgressInterval throttles OnProgress. At most one snapshot is
	// emitted per interval.
	ProgressInterval time.Duration

	// OnRecord, when set, may replace or veto a raw record before
	// enrichment. Returning a nil row drops the record (counted invalid);
	// returning an error does the same and reports it through OnError.
	OnRecord func(row map[string]string) (map[string]string, error)

	// OnProgress receives throttled progress snapshots.
	OnProgress func(Progress)

	// OnError receives recoverable row-level errors. Fatal errors are
	// returned from Run instead.
	OnError func(error)

	// OnComplete receives the final statistics. It is invoked on clean
	// completion and on fatal abort alike.
	OnComplete func(Stats)

	Stats Statter
	Log   Logger

	src     Source
	enr     Enricher
	batcher *Batcher

	valid   uint64
	invalid uint64
	start   time.Time
	lastAt  time.Time
	lastRec uint64
	lastByt int64
}

// NewIngester returns an Ingester with default buffering and progress
// throttling.
func NewIngester(src Source, enr Enricher, batcher *Batcher) *Ingester {
	return &Ingester{
		BufferSize:       64,
		ProgressInterval: time.Second,
		Stats:            NopStatter{},
		Log:              NopLogger{},
		src:              src,
		enr:              enr,
		batcher:          batcher,
	}
}

type sourceItem struct {
	row map[string]string
	err error
}

// Run pulls records from the source until EOF or a fatal error, enriching
// and batching each one in order. Any remaining partial batch is flushed
// before returning unless the run aborted fatally; batches already delivered
// are committed either way.
func (n *Ingester) Run(ctx context.Context) error {
	n.start = time.Now()
	n.lastAt = n.start

	items := make(chan sourceItem, n.BufferSize)
	go n.produce(ctx, items)

	var fatal error
	for it := range items {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}
		if it.err != nil {
			var rowErr *RowError
			if errors.As(it.err, &rowErr) {
				// already counted by the source's statistics
				n.Stats.Count("ingest.row_errors", 1, 1)
				n.reportError(it.err)
				continue
			}
			fatal = it.err
			break
		}
		if err := n.process(it.row); err != nil {
			fatal = err
			break
		}
		n.maybeProgress()
	}
	if fatal == nil {
		// the producer may have exited on cancellation before delivering
		// anything
		fatal = ctx.Err()
	}
	if fatal != nil {
		// drain so the producer goroutine can exit
		go func() {
			for range items {
			}
		}()
		n.complete()
		return fatal
	}
	n.batcher.Flush()
	n.emitProgress()
	n.complete()
	return nil
}

func (n *Ingester) produce(ctx context.Context, items chan<- sourceItem) {
	defer close(items)
	for {
		row, err := n.src.Record()
		if err == io.EOF {
			return
		}
		select {
		case items <- sourceItem{row: row, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				return // fatal, consumer will stop
			}
		}
	}
}

func (n *Ingester) process(row map[string]string) error {
	if n.OnRecord != nil {
		replaced, err := n.OnRecord(row)
		if err != nil {
			n.invalid++
			n.reportError(errors.Wrap(err, "record hook"))
			return nil
		}
		if replaced == nil {
			n.invalid++
			return nil
		}
		row = replaced
	}
	rec, err := n.enr.Enrich(row)
	if err != nil {
		n.invalid++
		n.Stats.Count("ingest.enrich_errors", 1, 1)
		n.reportError(errors.Wrap(err, "enriching record"))
		return nil
	}
	if rec == nil {
		// rejected by the strategy
		n.invalid++
		n.Stats.Count("ingest.rejected", 1, 1)
		return nil
	}
	n.valid++
	n.Stats.Count("ingest.records", 1, 1)
	if err := n.batcher.Add(rec); err != nil {
		if err != ErrBatchNowFull {
			return errors.Wrap(err, "adding record to batch")
		}
		n.batcher.Flush()
	}
	return nil
}

func (n *Ingester) reportError(err error) {
	n.Log.Debugf("recoverable: %v", err)
	if n.OnError != nil {
		n.OnError(err)
	}
}

func (n *Ingester) maybeProgress() {
	if time.Since(n.lastAt) < n.ProgressInterval {
		return
	}
	n.emitProgress()
}

func (n *Ingester) emitProgress() {
	now := time.Now()
	snap := n.snapshot()
	p := Progress{
		BytesProcessed: snap.BytesProcessed,
		TotalBytes:     snap.TotalBytes,
		Records:        snap.TotalRecords,
		ValidRecords:   snap.ValidRecords,
		InvalidRecords: snap.InvalidRecords,
		Elapsed:        now.Sub(n.start),
	}
	if p.TotalBytes > 0 {
		p.Percent = 100 * float64(p.BytesProcessed) / float64(p.TotalBytes)
	}
	window := now.Sub(n.lastAt).Seconds()
	if window > 0 {
		p.RecordsPerSec = float64(p.Records-n.lastRec) / window
		p.MBPerSec = float64(p.BytesProcessed-n.lastByt) / window / (1 << 20)
	}
	n.lastAt = now
	n.lastRec = p.Records
	n.lastByt = p.BytesProcessed
	n.Stats.Gauge("ingest.records_per_sec", p.RecordsPerSec, 1)
	n.Stats.Gauge("ingest.percent", p.Percent, 1)
	if n.OnProgress != nil {
		n.OnProgress(p)
	}
}

// snapshot merges the source's line-level statistics with the record-level
// counters the Ingester owns.
func (n *Ingester) snapshot() Stats {
	var s Stats
	if ss, ok := n.src.(StatsSource); ok {
		s = ss.Stats()
	}
	s.ValidRecords = n.valid
	s.InvalidRecords += n.invalid
	if s.Start.IsZero() {
		s.Start = n.start
	}
	return s
}

func (n *Ingester) complete() {
	if n.OnComplete != nil {
		n.OnComplete(n.snapshot())
	}
}
