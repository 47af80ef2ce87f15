package tripdk

import "fmt"

// Source is the interface for getting raw records one at a time. A record is
// one CSV line's fields keyed by header name. Record returns io.EOF once the
// underlying data is exhausted. Any returned error which is not a *RowError
// is fatal to the pipeline.
type Source interface {
	Record() (map[string]string, error)
}

// StatsSource is a Source which also reports running parse statistics.
// Pipelines use the snapshot for progress reporting and final accounting.
type StatsSource interface {
	Source
	Stats() Stats
}

// Enricher consumes one raw record, applies domain rules, and yields a
// processed record. Returning (nil, nil) means the record was rejected by the
// strategy; it is counted but processing continues. Enrichers must not
// panic outward - a strategy which cannot process a row reports that through
// its own record shape or rejects it.
type Enricher interface {
	Enrich(row map[string]string) (map[string]interface{}, error)
}

// RowError is an error scoped to a single input line. Pipelines report and
// count row errors but keep going; any other error from a Source aborts the
// whole run.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap supports errors.As/Is chains.
func (e *RowError) Unwrap() error { return e.Err }
