package trip

import (
	"fmt"

	"github.com/urbanmobility/tripdk"
)

// Inclusive is the categorizing validation strategy: every row yields
// exactly one Categorized record, never nil. Rows with problems keep flowing
// with their problems described by category, flags, and issues; even a panic
// during enrichment degrades to a processing_error record rather than losing
// the row. Safe for concurrent use.
type Inclusive struct {
	Log tripdk.Logger
}

// NewInclusive returns an Inclusive categorizer.
func NewInclusive() *Inclusive {
	return &Inclusive{Log: tripdk.NopLogger{}}
}

// Categorize parses the row best-effort, resolves its accumulated flags to
// a single category via the priority table, and sets the convenience
// booleans.
func (v *Inclusive) Categorize(row map[string]string) (c *Categorized) {
	defer func() {
		if r := recover(); r != nil {
			v.Log.Printf("panic categorizing row: %v", r)
			c = &Categorized{
				RawData:      row,
				Category:     ProcessingError,
				Flags:        []string{FlagProcessingError},
				Issues:       []string{fmt.Sprintf("processing failure: %v", r)},
				HasAnomalies: true,
			}
		}
	}()
	c, _, _ = enrichRow(row)
	c.Category = Categorize(c.Flags)
	c.IsValidNYCTrip = c.Category == ValidComplete
	c.IsSuburbanTrip = c.HasFlag(FlagDropoffOutsideNYC)
	c.IsMicroTrip = c.HasFlag(FlagMicroTrip)
	c.IsExtendedTrip = c.HasFlag(FlagExtendedTrip)
	c.HasAnomalies = len(c.Flags) > 0
	return c
}

// Enrich implements tripdk.Enricher. It never returns nil: every input row
// produces a record.
func (v *Inclusive) Enrich(row map[string]string) (map[string]interface{}, error) {
	return v.Categorize(row).Map(), nil
}
