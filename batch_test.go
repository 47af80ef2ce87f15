package tripdk_test

import (
	"fmt"
	"testing"

	"github.com/urbanmobility/tripdk"
)

type captureSink struct {
	sizes []int
	nums  []int
	recs  []map[string]interface{}
	err   error
}

func (s *captureSink) Batch(records []map[string]interface{}, batchNum int) error {
	s.sizes = append(s.sizes, len(records))
	s.nums = append(s.nums, batchNum)
	s.recs = append(s.recs, records...)
	return s.err
}

func TestBatcherSizing(t *testing.T) {
	sink := &captureSink{}
	b := tripdk.NewBatcher(2, sink)
	for i := 0; i < 5; i++ {
		rec := map[string]interface{}{"i": i}
		err := b.Add(rec)
		if err == tripdk.ErrBatchNowFull {
			b.Flush()
			continue
		}
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	b.Flush()

	if fmt.Sprint(sink.sizes) != "[2 2 1]" {
		t.Fatalf("batch sizes: %v", sink.sizes)
	}
	if fmt.Sprint(sink.nums) != "[1 2 3]" {
		t.Fatalf("batch numbers: %v", sink.nums)
	}
	for i, rec := range sink.recs {
		if rec["i"] != i {
			t.Fatalf("record order: %v", sink.recs)
		}
	}
	if b.Batches() != 3 || b.Pending() != 0 {
		t.Fatalf("batches: %d pending: %d", b.Batches(), b.Pending())
	}
}

func TestBatcherAddWhenFull(t *testing.T) {
	b := tripdk.NewBatcher(1, &captureSink{})
	if err := b.Add(map[string]interface{}{}); err != tripdk.ErrBatchNowFull {
		t.Fatalf("expected ErrBatchNowFull, got %v", err)
	}
	// still full until flushed
	if err := b.Add(map[string]interface{}{}); err != tripdk.ErrBatchNowFull {
		t.Fatalf("expected ErrBatchNowFull again, got %v", err)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending: %d", b.Pending())
	}
}

func TestBatcherEmptyFlush(t *testing.T) {
	sink := &captureSink{}
	b := tripdk.NewBatcher(2, sink)
	b.Flush()
	if len(sink.sizes) != 0 || b.Batches() != 0 {
		t.Fatalf("empty flush delivered a batch: %v", sink.sizes)
	}
}

// A sink failure is retained but never propagated; delivery continues.
func TestBatcherSinkErrors(t *testing.T) {
	sink := &captureSink{err: fmt.Errorf("disk full")}
	b := tripdk.NewBatcher(1, sink)
	b.Add(map[string]interface{}{"i": 0})
	b.Flush()
	b.Add(map[string]interface{}{"i": 1})
	b.Flush()

	if len(sink.sizes) != 2 {
		t.Fatalf("deliveries: %v", sink.sizes)
	}
	errs := b.SinkErrors()
	if len(errs) != 2 {
		t.Fatalf("sink errors: %v", errs)
	}
}

func TestBatcherDefaultSize(t *testing.T) {
	b := tripdk.NewBatcher(0, &captureSink{})
	for i := 0; i < tripdk.DefaultBatchSize-1; i++ {
		if err := b.Add(map[string]interface{}{}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := b.Add(map[string]interface{}{}); err != tripdk.ErrBatchNowFull {
		t.Fatalf("expected full at default size, got %v", err)
	}
}
