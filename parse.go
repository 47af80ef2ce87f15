package tripdk

import (
	"strconv"
	"strings"
	"time"
)

// Parser represents a single method for parsing a string field to a value.
type Parser interface {
	Parse(string) (interface{}, error)
}

// IntParser is a parser for integer types.
type IntParser struct{}

// FloatParser is a parser for float types.
type FloatParser struct{}

// StringParser is a parser for string types.
type StringParser struct{}

// TimeParser is a parser for timestamps.
type TimeParser struct {
	Layout string
}

// Parse parses an integer string to an int64 value.
func (p IntParser) Parse(field string) (result interface{}, err error) {
	return strconv.ParseInt(strings.TrimSpace(field), 10, 64)
}

// Parse parses a float string to a float64 value.
func (p FloatParser) Parse(field string) (result interface{}, err error) {
	return strconv.ParseFloat(strings.TrimSpace(field), 64)
}

// Parse is an identity parser for strings.
func (p StringParser) Parse(field string) (result interface{}, err error) {
	return field, nil
}

// Parse parses a timestamp string to a time.Time value.
func (p TimeParser) Parse(field string) (result interface{}, err error) {
	return time.Parse(p.Layout, strings.TrimSpace(field))
}
