package trip

// Category is a single discrete label classifying a record's overall
// data-quality status. Only the inclusive strategy assigns categories; the
// strict strategy drops anything that would not be ValidComplete.
type Category string

// The categories, in no particular order; precedence between them is given
// by categoryPriorities.
const (
	ValidComplete   Category = "valid_complete"
	IncompleteData  Category = "incomplete_data"
	DataAnomaly     Category = "data_anomaly"
	MicroTrip       Category = "micro_trip"
	ExtendedTrip    Category = "extended_trip"
	OutOfBounds     Category = "out_of_bounds"
	SuburbanTrip    Category = "suburban_trip"
	ProcessingError Category = "processing_error"
)

// Flag codes appended as quality rules trigger. Every triggered rule
// contributes its flag even when a different condition wins the category.
const (
	FlagMissingCoreFields = "missing_core_fields"
	FlagNonStandardVendor = "non_standard_vendor"
	FlagNonStandardFlag   = "non_standard_store_flag"
	FlagMicroTrip         = "micro_trip"
	FlagExtendedTrip      = "extended_trip"
	FlagZeroPassengers    = "zero_passengers"
	FlagExcessPassengers  = "excess_passengers"
	FlagPickupOutsideNYC  = "pickup_outside_nyc"
	FlagDropoffOutsideNYC = "dropoff_outside_nyc"
	FlagInvalidSequence   = "invalid_datetime_sequence"
	FlagDurationMismatch  = "duration_mismatch"
	FlagProcessingError   = "processing_error"

	// Coarse destination direction for suburban trips, from the side of
	// the bounding box the dropoff exceeded. Informational only; these
	// never argue for a category themselves.
	FlagDestinationNorth = "destination_north"
	FlagDestinationSouth = "destination_south"
	FlagDestinationEast  = "destination_east"
	FlagDestinationWest  = "destination_west"
)

// flagCategories maps each rule flag to the category it argues for.
var flagCategories = map[string]Category{
	FlagMissingCoreFields: IncompleteData,
	FlagNonStandardVendor: DataAnomaly,
	FlagNonStandardFlag:   DataAnomaly,
	FlagMicroTrip:         MicroTrip,
	FlagExtendedTrip:      ExtendedTrip,
	FlagZeroPassengers:    DataAnomaly,
	FlagExcessPassengers:  DataAnomaly,
	FlagPickupOutsideNYC:  OutOfBounds,
	FlagDropoffOutsideNYC: SuburbanTrip,
	FlagInvalidSequence:   DataAnomaly,
	FlagDurationMismatch:  DataAnomaly,
	FlagProcessingError:   ProcessingError,
}

// categoryPriorities is the explicit total order across quality conditions:
// the highest-priority triggered condition becomes the record's category,
// while every triggered flag accumulates regardless of which one wins.
// Suburban outranks micro so a too-short hop that leaves the city still
// reports its destination; incompleteness outranks everything recoverable
// because the other rules can't be evaluated meaningfully without the core
// fields.
var categoryPriorities = map[Category]int{
	ProcessingError: 100,
	IncompleteData:  90,
	SuburbanTrip:    80,
	MicroTrip:       70,
	OutOfBounds:     60,
	ExtendedTrip:    50,
	DataAnomaly:     40,
	ValidComplete:   0,
}

// Categorize resolves a set of accumulated flags to the single category with
// the highest priority. No flags means ValidComplete.
func Categorize(flags []string) Category {
	cat := ValidComplete
	for _, f := range flags {
		c, ok := flagCategories[f]
		if !ok {
			continue
		}
		if categoryPriorities[c] > categoryPriorities[cat] {
			cat = c
		}
	}
	return cat
}
