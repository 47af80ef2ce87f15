package trip

import (
	"sync/atomic"

	"github.com/urbanmobility/tripdk"
)

// Strict is the rejecting validation strategy: a row either passes every
// business rule and yields a fully populated Trip, or it yields nothing at
// all. Rejections are counted, never reported as errors. Safe for
// concurrent use.
type Strict struct {
	Log tripdk.Logger

	rejected uint64
}

// NewStrict returns a Strict validator.
func NewStrict() *Strict {
	return &Strict{Log: tripdk.NopLogger{}}
}

// Validate applies every gate to the row: all required fields present, all
// values parseable, and every business rule satisfied. It returns nil when
// any gate fails. Validate never panics outward; an unexpected failure is
// counted as a rejection.
func (v *Strict) Validate(row map[string]string) (t *Trip) {
	defer func() {
		if r := recover(); r != nil {
			v.Log.Printf("panic validating row, rejecting: %v", r)
			atomic.AddUint64(&v.rejected, 1)
			t = nil
		}
	}()
	c, missing, bad := enrichRow(row)
	if len(missing) > 0 || len(bad) > 0 || len(c.Flags) > 0 {
		atomic.AddUint64(&v.rejected, 1)
		v.Log.Debugf("rejecting row: missing=%v bad=%v flags=%v", missing, bad, c.Flags)
		return nil
	}
	// every pointer is non-nil past the gates
	return &Trip{
		ID:              *c.ID,
		VendorID:        *c.VendorID,
		PickupTime:      *c.PickupTime,
		DropoffTime:     *c.DropoffTime,
		PassengerCount:  *c.PassengerCount,
		PickupLon:       *c.PickupLon,
		PickupLat:       *c.PickupLat,
		DropoffLon:      *c.DropoffLon,
		DropoffLat:      *c.DropoffLat,
		StoreAndFwdFlag: *c.StoreAndFwdFlag,
		DurationSec:     *c.DurationSec,
		DistanceKm:      *c.DistanceKm,
		SpeedKmh:        *c.SpeedKmh,
		FareEstimate:    *c.FareEstimate,
		FarePerKm:       *c.FarePerKm,
		PickupHour:      *c.PickupHour,
		PickupWeekday:   c.PickupTime.Weekday(),
		PickupDay:       *c.PickupDay,
		PickupMonth:     *c.PickupMonth,
		PickupYear:      *c.PickupYear,
		TimeOfDay:       *c.TimeOfDay,
		DayType:         *c.DayType,
		PickupGeohash:   *c.PickupGeohash,
		DropoffGeohash:  *c.DropoffGeohash,
		QualityScore:    c.QualityScore,
	}
}

// Enrich implements tripdk.Enricher. A rejected row returns (nil, nil) so
// the pipeline counts it and moves on.
func (v *Strict) Enrich(row map[string]string) (map[string]interface{}, error) {
	t := v.Validate(row)
	if t == nil {
		return nil, nil
	}
	return t.Map(), nil
}

// Rejected returns how many rows have been rejected so far.
func (v *Strict) Rejected() uint64 {
	return atomic.LoadUint64(&v.rejected)
}
