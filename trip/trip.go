// Package trip implements the taxi-trip domain: typed trip records, the
// business rules of the NYC extracts, derived geospatial and temporal
// features, and two interchangeable validation strategies. Strict rejects
// any row violating a rule; Inclusive keeps every row and classifies it
// instead. Both are adapters over one shared parse-and-enrich pass, so the
// formulas cannot drift apart.
package trip

import "time"

// Column names of the trip extracts.
const (
	FieldID               = "id"
	FieldVendorID         = "vendor_id"
	FieldPickupDatetime   = "pickup_datetime"
	FieldDropoffDatetime  = "dropoff_datetime"
	FieldPassengerCount   = "passenger_count"
	FieldPickupLongitude  = "pickup_longitude"
	FieldPickupLatitude   = "pickup_latitude"
	FieldDropoffLongitude = "dropoff_longitude"
	FieldDropoffLatitude  = "dropoff_latitude"
	FieldStoreAndFwdFlag  = "store_and_fwd_flag"
	FieldTripDuration     = "trip_duration"
)

// RequiredFields are the columns a complete trip row must carry.
var RequiredFields = []string{
	FieldID,
	FieldVendorID,
	FieldPickupDatetime,
	FieldDropoffDatetime,
	FieldPassengerCount,
	FieldPickupLongitude,
	FieldPickupLatitude,
	FieldDropoffLongitude,
	FieldDropoffLatitude,
	FieldStoreAndFwdFlag,
	FieldTripDuration,
}

// TimeLayout is the timestamp layout used by the TLC trip extracts.
// See http://www.nyc.gov/html/tlc/downloads/pdf/data_dictionary_trip_records_green.pdf
const TimeLayout = "2006-01-02 15:04:05"

// NYC bounding box.
const (
	MinLat = 40.4774
	MaxLat = 40.9176
	MinLon = -74.2591
	MaxLon = -73.7004
)

// Business rule bounds.
const (
	MinDurationSec = 60
	MaxDurationSec = 86400
	MinPassengers  = 1
	MaxPassengers  = 6

	// DurationTolerance is the permitted relative difference between the
	// recorded trip duration and the pickup-to-dropoff wall clock. Exactly
	// at the tolerance is accepted.
	DurationTolerance = 0.01
)

// Fare model constants.
const (
	FareBase      = 2.50
	FarePerKm     = 1.56
	FarePerMinute = 0.50
	FareMinimum   = 8.00
)

// GeohashPrecision is the cell precision (characters) of the pickup and
// dropoff geohashes.
const GeohashPrecision = 6

// InBounds reports whether a coordinate lies inside the NYC bounding box.
func InBounds(lat, lon float64) bool {
	return lat >= MinLat && lat <= MaxLat && lon >= MinLon && lon <= MaxLon
}

// Trip is a fully validated trip record: present only when every business
// rule passed, so none of its fields are optional.
type Trip struct {
	ID              string
	VendorID        string
	PickupTime      time.Time
	DropoffTime     time.Time
	PassengerCount  int
	PickupLon       float64
	PickupLat       float64
	DropoffLon      float64
	DropoffLat      float64
	StoreAndFwdFlag string
	DurationSec     int

	DistanceKm     float64
	SpeedKmh       float64
	FareEstimate   float64
	FarePerKm      float64
	PickupHour     int
	PickupWeekday  time.Weekday
	PickupDay      int
	PickupMonth    int
	PickupYear     int
	TimeOfDay      string
	DayType        string
	PickupGeohash  string
	DropoffGeohash string
	QualityScore   int
}

// Map renders the trip as the field mapping handed to batch sinks.
func (t *Trip) Map() map[string]interface{} {
	return map[string]interface{}{
		FieldID:               t.ID,
		FieldVendorID:         t.VendorID,
		FieldPickupDatetime:   t.PickupTime,
		FieldDropoffDatetime:  t.DropoffTime,
		FieldPassengerCount:   t.PassengerCount,
		FieldPickupLongitude:  t.PickupLon,
		FieldPickupLatitude:   t.PickupLat,
		FieldDropoffLongitude: t.DropoffLon,
		FieldDropoffLatitude:  t.DropoffLat,
		FieldStoreAndFwdFlag:  t.StoreAndFwdFlag,
		FieldTripDuration:     t.DurationSec,
		"distance_km":         t.DistanceKm,
		"speed_kmh":           t.SpeedKmh,
		"fare_estimate":       t.FareEstimate,
		"fare_per_km":         t.FarePerKm,
		"pickup_hour":         t.PickupHour,
		"pickup_weekday":      int(t.PickupWeekday),
		"pickup_day":          t.PickupDay,
		"pickup_month":        t.PickupMonth,
		"pickup_year":         t.PickupYear,
		"time_of_day":         t.TimeOfDay,
		"day_type":            t.DayType,
		"pickup_geohash":      t.PickupGeohash,
		"dropoff_geohash":     t.DropoffGeohash,
		"data_quality_score":  t.QualityScore,
	}
}

// timeOfDay buckets an hour of day.
func timeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// dayType distinguishes weekends from weekdays.
func dayType(wd time.Weekday) string {
	if wd == time.Saturday || wd == time.Sunday {
		return "weekend"
	}
	return "weekday"
}
