package tripdk_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/urbanmobility/tripdk"
)

func TestStatsErrorRate(t *testing.T) {
	var s tripdk.Stats
	if s.ErrorRate() != 0 {
		t.Fatalf("error rate with no lines: %f", s.ErrorRate())
	}
	s.TotalLines = 10
	s.InvalidRecords = 3
	if s.ErrorRate() != 0.3 {
		t.Fatalf("error rate: %f", s.ErrorRate())
	}
}

func TestStatsErrorsCapped(t *testing.T) {
	var s tripdk.Stats
	for i := 0; i < tripdk.MaxStatsErrors+50; i++ {
		s.RecordError(fmt.Errorf("err %d", i))
	}
	if len(s.Errors) != tripdk.MaxStatsErrors {
		t.Fatalf("retained errors: %d", len(s.Errors))
	}
}

func TestStatsRecordsPerSecond(t *testing.T) {
	s := tripdk.Stats{Start: time.Now().Add(-2 * time.Second), TotalRecords: 100}
	rps := s.RecordsPerSecond()
	if rps < 40 || rps > 60 {
		t.Fatalf("records per second: %f", rps)
	}
}
