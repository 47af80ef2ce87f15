package tripdk

import "github.com/pkg/errors"

// ErrBatchNowFull is returned by Batcher.Add when the record just added
// brought the buffer up to the configured batch size. The caller should
// Flush before adding more.
var ErrBatchNowFull = errors.New("batch is full - flush before adding more")

// BatchSink receives full batches of processed records. Batches are numbered
// monotonically from 1 in delivery order. A sink error is recorded but does
// not stop the pipeline; batches already delivered are considered committed.
type BatchSink interface {
	Batch(records []map[string]interface{}, batchNum int) error
}

// BatchSinkFunc adapts a function to the BatchSink interface.
type BatchSinkFunc func(records []map[string]interface{}, batchNum int) error

// Batch calls f.
func (f BatchSinkFunc) Batch(records []map[string]interface{}, batchNum int) error {
	return f(records, batchNum)
}

// Batcher accumulates processed records into fixed-size batches and hands
// each one to a sink. Not safe for concurrent use; the pipeline feeding it is
// strictly sequential.
type Batcher struct {
	size int
	sink BatchSink
	log  Logger

	buf      []map[string]interface{}
	batchNum int
	sinkErrs []error
}

// DefaultBatchSize is the number of records per batch unless configured
// otherwise.
const DefaultBatchSize = 1000

// NewBatcher returns a Batcher flushing to sink every size records. A size
// below 1 falls back to DefaultBatchSize.
func NewBatcher(size int, sink BatchSink) *Batcher {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &Batcher{
		size: size,
		sink: sink,
		log:  NopLogger{},
		buf:  make([]map[string]interface{}, 0, size),
	}
}

// SetLogger sets the logger used to report sink failures.
func (b *Batcher) SetLogger(l Logger) {
	if l != nil {
		b.log = l
	}
}

// Add appends one record to the current batch. It returns ErrBatchNowFull
// when the buffer has reached the batch size.
func (b *Batcher) Add(rec map[string]interface{}) error {
	if len(b.buf) >= b.size {
		return ErrBatchNowFull
	}
	b.buf = append(b.buf, rec)
	if len(b.buf) == b.size {
		return ErrBatchNowFull
	}
	return nil
}

// Flush delivers the buffered records, if any, to the sink as the next
// numbered batch and clears the buffer. Sink failures are logged and
// retained, never returned - the next batch proceeds regardless.
func (b *Batcher) Flush() {
	if len(b.buf) == 0 {
		return
	}
	b.batchNum++
	batch := b.buf
	b.buf = make([]map[string]interface{}, 0, b.size)
	if err := b.sink.Batch(batch, b.batchNum); err != nil {
		err = errors.Wrapf(err, "sinking batch %d (%d records)", b.batchNum, len(batch))
		b.log.Printf("%v", err)
		b.sinkErrs = append(b.sinkErrs, err)
	}
}

// Batches returns how many batches have been delivered so far.
func (b *Batcher) Batches() int { return b.batchNum }

// Pending returns how many records are buffered awaiting flush.
func (b *Batcher) Pending() int { return len(b.buf) }

// SinkErrors returns the errors returned by the sink so far.
func (b *Batcher) SinkErrors() []error { return b.sinkErrs }
