package trip

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/urbanmobility/tripdk"
)

// Categorized is the inclusive strategy's output: a superset of Trip with
// every field individually nullable, plus the quality classification. Every
// input row yields exactly one Categorized record.
type Categorized struct {
	ID              *string
	VendorID        *string
	PickupTime      *time.Time
	DropoffTime     *time.Time
	PassengerCount  *int
	PickupLon       *float64
	PickupLat       *float64
	DropoffLon      *float64
	DropoffLat      *float64
	StoreAndFwdFlag *string
	DurationSec     *int

	DistanceKm     *float64
	SpeedKmh       *float64
	FareEstimate   *float64
	FarePerKm      *float64
	PickupHour     *int
	PickupWeekday  *int
	PickupDay      *int
	PickupMonth    *int
	PickupYear     *int
	TimeOfDay      *string
	DayType        *string
	PickupGeohash  *string
	DropoffGeohash *string

	QualityScore int
	Category     Category
	Flags        []string
	Issues       []string
	RawData      map[string]string

	IsValidNYCTrip bool
	IsSuburbanTrip bool
	IsMicroTrip    bool
	IsExtendedTrip bool
	HasAnomalies   bool
}

// HasFlag reports whether code is among the record's accumulated flags.
func (c *Categorized) HasFlag(code string) bool {
	for _, f := range c.Flags {
		if f == code {
			return true
		}
	}
	return false
}

func (c *Categorized) flag(code, issueFormat string, args ...interface{}) {
	c.Flags = append(c.Flags, code)
	c.Issues = append(c.Issues, fmt.Sprintf(issueFormat, args...))
}

// Map renders the record as the field mapping handed to batch sinks.
// Nullable fields appear with nil values so downstream storage sees an
// explicit null rather than an absent column.
func (c *Categorized) Map() map[string]interface{} {
	return map[string]interface{}{
		FieldID:               deref(c.ID),
		FieldVendorID:         deref(c.VendorID),
		FieldPickupDatetime:   deref(c.PickupTime),
		FieldDropoffDatetime:  deref(c.DropoffTime),
		FieldPassengerCount:   deref(c.PassengerCount),
		FieldPickupLongitude:  deref(c.PickupLon),
		FieldPickupLatitude:   deref(c.PickupLat),
		FieldDropoffLongitude: deref(c.DropoffLon),
		FieldDropoffLatitude:  deref(c.DropoffLat),
		FieldStoreAndFwdFlag:  deref(c.StoreAndFwdFlag),
		FieldTripDuration:     deref(c.DurationSec),
		"distance_km":         deref(c.DistanceKm),
		"speed_kmh":           deref(c.SpeedKmh),
		"fare_estimate":       deref(c.FareEstimate),
		"fare_per_km":         deref(c.FarePerKm),
		"pickup_hour":         deref(c.PickupHour),
		"pickup_weekday":      deref(c.PickupWeekday),
		"pickup_day":          deref(c.PickupDay),
		"pickup_month":        deref(c.PickupMonth),
		"pickup_year":         deref(c.PickupYear),
		"time_of_day":         deref(c.TimeOfDay),
		"day_type":            deref(c.DayType),
		"pickup_geohash":      deref(c.PickupGeohash),
		"dropoff_geohash":     deref(c.DropoffGeohash),
		"data_quality_score":  c.QualityScore,
		"data_category":       string(c.Category),
		"data_flags":          append([]string(nil), c.Flags...),
		"validation_issues":   append([]string(nil), c.Issues...),
		"is_valid_nyc_trip":   c.IsValidNYCTrip,
		"is_suburban_trip":    c.IsSuburbanTrip,
		"is_micro_trip":       c.IsMicroTrip,
		"is_extended_trip":    c.IsExtendedTrip,
		"has_anomalies":       c.HasAnomalies,
		"raw_data":            c.RawData,
	}
}

func deref[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

var (
	intParser   = tripdk.IntParser{}
	floatParser = tripdk.FloatParser{}
	timeParser  = tripdk.TimeParser{Layout: TimeLayout}
)

// rowParse is the best-effort parsing pass over one raw row. A field absent
// from the row (or blank) lands in missing; a field present but unparseable
// lands in bad with an issue string. Neither aborts the row.
type rowParse struct {
	row     map[string]string
	c       *Categorized
	missing []string
	bad     []string
}

func (p *rowParse) raw(field string) (string, bool) {
	v, ok := p.row[field]
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		p.missing = append(p.missing, field)
		return "", false
	}
	return v, true
}

func (p *rowParse) str(field string) *string {
	v, ok := p.raw(field)
	if !ok {
		return nil
	}
	return &v
}

func (p *rowParse) parse(field string, parser tripdk.Parser) interface{} {
	v, ok := p.raw(field)
	if !ok {
		return nil
	}
	val, err := parser.Parse(v)
	if err != nil {
		p.bad = append(p.bad, field)
		p.c.Issues = append(p.c.Issues, fmt.Sprintf("%s: unparseable value %q", field, v))
		return nil
	}
	return val
}

func (p *rowParse) int(field string) *int {
	val := p.parse(field, intParser)
	if val == nil {
		return nil
	}
	n := int(val.(int64))
	return &n
}

func (p *rowParse) float(field string) *float64 {
	val := p.parse(field, floatParser)
	if val == nil {
		return nil
	}
	f := val.(float64)
	return &f
}

func (p *rowParse) time(field string) *time.Time {
	val := p.parse(field, timeParser)
	if val == nil {
		return nil
	}
	t := val.(time.Time)
	return &t
}

// enrichRow is the single parse-and-enrich pass shared by both strategies.
// It parses every required field best-effort, applies every business rule as
// a flag, and computes whichever derived features the parsed fields permit.
// The strict adapter discards the result on any accumulated problem; the
// inclusive adapter keeps it regardless.
func enrichRow(row map[string]string) (*Categorized, []string, []string) {
	c := &Categorized{RawData: row, Category: ValidComplete}
	p := &rowParse{row: row, c: c}

	c.ID = p.str(FieldID)
	c.VendorID = p.str(FieldVendorID)
	c.PickupTime = p.time(FieldPickupDatetime)
	c.DropoffTime = p.time(FieldDropoffDatetime)
	c.PassengerCount = p.int(FieldPassengerCount)
	c.PickupLon = p.float(FieldPickupLongitude)
	c.PickupLat = p.float(FieldPickupLatitude)
	c.DropoffLon = p.float(FieldDropoffLongitude)
	c.DropoffLat = p.float(FieldDropoffLatitude)
	c.StoreAndFwdFlag = p.str(FieldStoreAndFwdFlag)
	c.DurationSec = p.int(FieldTripDuration)

	applyRules(c)
	deriveFeatures(c)
	c.QualityScore = qualityScore(c)
	return c, p.missing, p.bad
}

func applyRules(c *Categorized) {
	if c.ID == nil || c.VendorID == nil || c.PickupTime == nil || c.DropoffTime == nil {
		c.flag(FlagMissingCoreFields, "missing one or more of %s, %s, %s, %s",
			FieldID, FieldVendorID, FieldPickupDatetime, FieldDropoffDatetime)
	}
	if c.VendorID != nil && *c.VendorID != "1" && *c.VendorID != "2" {
		c.flag(FlagNonStandardVendor, "vendor_id %q is not a known vendor", *c.VendorID)
	}
	if c.StoreAndFwdFlag != nil && *c.StoreAndFwdFlag != "Y" && *c.StoreAndFwdFlag != "N" {
		c.flag(FlagNonStandardFlag, "store_and_fwd_flag %q is neither Y nor N", *c.StoreAndFwdFlag)
	}
	if c.DurationSec != nil {
		if *c.DurationSec < MinDurationSec {
			c.flag(FlagMicroTrip, "trip_duration %ds is below the %ds minimum", *c.DurationSec, MinDurationSec)
		}
		if *c.DurationSec > MaxDurationSec {
			c.flag(FlagExtendedTrip, "trip_duration %ds exceeds the %ds maximum", *c.DurationSec, MaxDurationSec)
		}
	}
	if c.PassengerCount != nil {
		if *c.PassengerCount < MinPassengers {
			c.flag(FlagZeroPassengers, "passenger_count %d is below %d", *c.PassengerCount, MinPassengers)
		}
		if *c.PassengerCount > MaxPassengers {
			c.flag(FlagExcessPassengers, "passenger_count %d exceeds %d", *c.PassengerCount, MaxPassengers)
		}
	}
	if c.PickupLat != nil && c.PickupLon != nil && !InBounds(*c.PickupLat, *c.PickupLon) {
		c.flag(FlagPickupOutsideNYC, "pickup (%f, %f) is outside NYC bounds", *c.PickupLat, *c.PickupLon)
	}
	if c.DropoffLat != nil && c.DropoffLon != nil && !InBounds(*c.DropoffLat, *c.DropoffLon) {
		c.flag(FlagDropoffOutsideNYC, "dropoff (%f, %f) is outside NYC bounds", *c.DropoffLat, *c.DropoffLon)
		if dir := destinationFlag(*c.DropoffLat, *c.DropoffLon); dir != "" {
			c.flag(dir, "dropoff heading inferred as %s", strings.TrimPrefix(dir, "destination_"))
		}
	}
	if c.PickupTime != nil && c.DropoffTime != nil {
		if !c.DropoffTime.After(*c.PickupTime) {
			c.flag(FlagInvalidSequence, "dropoff %s is not after pickup %s",
				c.DropoffTime.Format(TimeLayout), c.PickupTime.Format(TimeLayout))
		} else if c.DurationSec != nil {
			// tolerance scales with the recorded duration, so a recorded 0
			// tolerates no wall clock at all
			wall := c.DropoffTime.Sub(*c.PickupTime).Seconds()
			if math.Abs(wall-float64(*c.DurationSec)) > DurationTolerance*float64(*c.DurationSec) {
				c.flag(FlagDurationMismatch, "recorded duration %ds disagrees with timestamps (%.0fs wall clock)",
					*c.DurationSec, wall)
			}
		}
	}
}

// destinationFlag infers a coarse heading from the side of the bounding box
// the dropoff exceeded. Latitude wins over longitude when both sides are
// exceeded.
func destinationFlag(lat, lon float64) string {
	switch {
	case lat > MaxLat:
		return FlagDestinationNorth
	case lat < MinLat:
		return FlagDestinationSouth
	case lon > MaxLon:
		return FlagDestinationEast
	case lon < MinLon:
		return FlagDestinationWest
	}
	return ""
}

func deriveFeatures(c *Categorized) {
	if c.PickupTime != nil {
		hour := c.PickupTime.Hour()
		weekday := int(c.PickupTime.Weekday())
		day := c.PickupTime.Day()
		month := int(c.PickupTime.Month())
		year := c.PickupTime.Year()
		tod := timeOfDay(hour)
		dt := dayType(c.PickupTime.Weekday())
		c.PickupHour, c.PickupWeekday, c.PickupDay = &hour, &weekday, &day
		c.PickupMonth, c.PickupYear = &month, &year
		c.TimeOfDay, c.DayType = &tod, &dt
	}
	if c.PickupLat != nil && c.PickupLon != nil {
		gh := geohash.EncodeWithPrecision(*c.PickupLat, *c.PickupLon, GeohashPrecision)
		c.PickupGeohash = &gh
	}
	if c.DropoffLat != nil && c.DropoffLon != nil {
		gh := geohash.EncodeWithPrecision(*c.DropoffLat, *c.DropoffLon, GeohashPrecision)
		c.DropoffGeohash = &gh
	}
	if c.PickupLat == nil || c.PickupLon == nil || c.DropoffLat == nil || c.DropoffLon == nil {
		return
	}
	dist := Haversine(*c.PickupLat, *c.PickupLon, *c.DropoffLat, *c.DropoffLon)
	c.DistanceKm = &dist
	if c.DurationSec == nil {
		return
	}
	speed := 0.0
	if *c.DurationSec > 0 {
		speed = dist / (float64(*c.DurationSec) / 3600)
	}
	c.SpeedKmh = &speed
	fare := FareBase + dist*FarePerKm + float64(*c.DurationSec)/60*FarePerMinute
	if fare < FareMinimum {
		fare = FareMinimum
	}
	c.FareEstimate = &fare
	perKm := 0.0
	if dist > 0 {
		perKm = fare / dist
	}
	c.FarePerKm = &perKm
}

// flagPenalties are the additional quality-score deductions applied per
// accumulated flag on top of the base penalty table.
var flagPenalties = map[string]int{
	FlagMicroTrip:         10,
	FlagExtendedTrip:      5,
	FlagDropoffOutsideNYC: 5,
	FlagPickupOutsideNYC:  10,
	FlagDurationMismatch:  15,
	FlagInvalidSequence:   20,
}

// missingCoordScore is the fixed quality score of a record whose distance
// and speed could not be computed at all.
const missingCoordScore = 20

func qualityScore(c *Categorized) int {
	if c.PickupLat == nil || c.PickupLon == nil || c.DropoffLat == nil || c.DropoffLon == nil {
		return missingCoordScore
	}
	score := 100
	if c.SpeedKmh != nil && *c.SpeedKmh > 120 {
		score -= 20
	}
	if c.SpeedKmh != nil && *c.SpeedKmh < 1 && c.DistanceKm != nil && *c.DistanceKm > 0.1 {
		score -= 10
	}
	if c.DistanceKm != nil && *c.DistanceKm < 0.1 {
		score -= 15
	}
	if c.DurationSec != nil && *c.DurationSec < 120 {
		score -= 5
	}
	if c.DurationSec != nil && *c.DurationSec > 7200 {
		score -= 5
	}
	for _, f := range c.Flags {
		score -= flagPenalties[f]
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
