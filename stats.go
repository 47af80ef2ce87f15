package tripdk

import "time"

// Stats is a snapshot of running parse statistics. The tokenizer owns the
// line-level counters; the Ingester fills in record validity on top.
type Stats struct {
	TotalLines     uint64
	TotalRecords   uint64
	ValidRecords   uint64
	InvalidRecords uint64
	EmptyLines     uint64
	BytesProcessed int64
	TotalBytes     int64 // 0 when the input size is unknown (e.g. HTTP without Content-Length)
	Errors         []string
	Start          time.Time
}

// ProcessingTime returns the wall-clock time elapsed since parsing started.
func (s Stats) ProcessingTime() time.Duration {
	if s.Start.IsZero() {
		return 0
	}
	return time.Since(s.Start)
}

// RecordsPerSecond returns the average record throughput so far.
func (s Stats) RecordsPerSecond() float64 {
	secs := s.ProcessingTime().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.TotalRecords) / secs
}

// ErrorRate returns the fraction of lines seen so far which were malformed.
func (s Stats) ErrorRate() float64 {
	if s.TotalLines == 0 {
		return 0
	}
	return float64(s.InvalidRecords) / float64(s.TotalLines)
}

// MaxStatsErrors caps the error strings retained in Stats so a pathological
// file can't grow the slice without bound.
const MaxStatsErrors = 100

// RecordError appends err to the retained error list, dropping it if the cap
// has been reached.
func (s *Stats) RecordError(err error) {
	if len(s.Errors) < MaxStatsErrors {
		s.Errors = append(s.Errors, err.Error())
	}
}
