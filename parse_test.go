package tripdk_test

import (
	"testing"
	"time"

	"github.com/urbanmobility/tripdk"
)

func TestParsers(t *testing.T) {
	v, err := tripdk.IntParser{}.Parse(" 42 ")
	if err != nil || v.(int64) != 42 {
		t.Fatalf("int: %v, %v", v, err)
	}
	if _, err := (tripdk.IntParser{}).Parse("forty-two"); err == nil {
		t.Fatalf("expected int parse error")
	}

	v, err = tripdk.FloatParser{}.Parse("-73.9855")
	if err != nil || v.(float64) != -73.9855 {
		t.Fatalf("float: %v, %v", v, err)
	}

	p := tripdk.TimeParser{Layout: "2006-01-02 15:04:05"}
	v, err = p.Parse("2016-01-15 10:00:00")
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	ts := v.(time.Time)
	if ts.Year() != 2016 || ts.Hour() != 10 {
		t.Fatalf("parsed time: %v", ts)
	}
	if _, err := p.Parse("01/15/2016"); err == nil {
		t.Fatalf("expected time parse error")
	}
}
