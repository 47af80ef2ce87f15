package tripdk_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/urbanmobility/tripdk"
	"github.com/urbanmobility/tripdk/csv"
	"github.com/urbanmobility/tripdk/trip"
)

const tripHeader = "id,vendor_id,pickup_datetime,dropoff_datetime,passenger_count," +
	"pickup_longitude,pickup_latitude,dropoff_longitude,dropoff_latitude," +
	"store_and_fwd_flag,trip_duration"

func tripLine(id string) string {
	return id + ",1,2016-01-15 10:00:00,2016-01-15 10:10:00,2," +
		"-73.9855,40.7580,-74.0088,40.7061,N,600"
}

func mustWriteTemp(t *testing.T, content string) string {
	f, err := ioutil.TempFile("", "trips")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestIngesterEndToEnd(t *testing.T) {
	lines := []string{tripHeader}
	for i := 0; i < 5; i++ {
		lines = append(lines, tripLine(fmt.Sprintf("id%d", i)))
	}
	name := mustWriteTemp(t, strings.Join(lines, "\n")+"\n")
	defer os.Remove(name)

	src := csv.NewSource(csv.WithURL(name))
	sink := &captureSink{}
	batcher := tripdk.NewBatcher(2, sink)
	ing := tripdk.NewIngester(src, trip.NewStrict(), batcher)

	var final tripdk.Stats
	ing.OnComplete = func(s tripdk.Stats) { final = s }

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fmt.Sprint(sink.sizes) != "[2 2 1]" || fmt.Sprint(sink.nums) != "[1 2 3]" {
		t.Fatalf("batches: sizes %v nums %v", sink.sizes, sink.nums)
	}
	for i, rec := range sink.recs {
		if rec["id"] != fmt.Sprintf("id%d", i) {
			t.Fatalf("record order broken at %d: %v", i, rec["id"])
		}
	}
	if final.TotalRecords != 5 || final.ValidRecords != 5 || final.InvalidRecords != 0 {
		t.Fatalf("final stats: %+v", final)
	}
	if final.TotalLines != 6 {
		t.Fatalf("total lines: %d", final.TotalLines)
	}
}

func TestIngesterRowErrorsAreRecoverable(t *testing.T) {
	content := tripHeader + "\n" + tripLine("id0") + "\nnot,enough,fields\n" + tripLine("id1") + "\n"
	name := mustWriteTemp(t, content)
	defer os.Remove(name)

	src := csv.NewSource(csv.WithURL(name), csv.WithErrorTolerance(1.0))
	sink := &captureSink{}
	ing := tripdk.NewIngester(src, trip.NewStrict(), tripdk.NewBatcher(10, sink))

	var reported []error
	ing.OnError = func(err error) { reported = append(reported, err) }
	var final tripdk.Stats
	ing.OnComplete = func(s tripdk.Stats) { final = s }

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("run should survive a malformed line: %v", err)
	}
	if len(reported) != 1 {
		t.Fatalf("reported errors: %v", reported)
	}
	if final.ValidRecords != 2 || final.InvalidRecords != 1 {
		t.Fatalf("final stats: %+v", final)
	}
	if len(sink.recs) != 2 {
		t.Fatalf("sunk records: %d", len(sink.recs))
	}
}

func TestIngesterToleranceAbortsRun(t *testing.T) {
	content := tripHeader + "\n" + tripLine("id0") + "\nbad\n" + tripLine("id1") + "\n"
	name := mustWriteTemp(t, content)
	defer os.Remove(name)

	src := csv.NewSource(csv.WithURL(name), csv.WithErrorTolerance(0))
	ing := tripdk.NewIngester(src, trip.NewStrict(), tripdk.NewBatcher(10, &captureSink{}))

	err := ing.Run(context.Background())
	if err == nil {
		t.Fatalf("expected fatal error")
	}
	if _, ok := err.(*csv.ToleranceError); !ok {
		t.Fatalf("expected ToleranceError, got %v", err)
	}
}

func TestIngesterOnRecordVeto(t *testing.T) {
	lines := []string{tripHeader}
	for i := 0; i < 4; i++ {
		lines = append(lines, tripLine(fmt.Sprintf("id%d", i)))
	}
	name := mustWriteTemp(t, strings.Join(lines, "\n")+"\n")
	defer os.Remove(name)

	src := csv.NewSource(csv.WithURL(name))
	sink := &captureSink{}
	ing := tripdk.NewIngester(src, trip.NewStrict(), tripdk.NewBatcher(10, sink))
	ing.OnRecord = func(row map[string]string) (map[string]string, error) {
		if row["id"] == "id1" {
			return nil, nil
		}
		return row, nil
	}
	var final tripdk.Stats
	ing.OnComplete = func(s tripdk.Stats) { final = s }

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if final.ValidRecords != 3 || final.InvalidRecords != 1 {
		t.Fatalf("final stats: %+v", final)
	}
	for _, rec := range sink.recs {
		if rec["id"] == "id1" {
			t.Fatalf("vetoed record delivered")
		}
	}
}

// The inclusive strategy delivers one record per data line, problems and all.
func TestIngesterInclusiveKeepsEverything(t *testing.T) {
	bad := strings.Replace(tripLine("id1"), ",2,", ",0,", 1) // zero passengers
	content := tripHeader + "\n" + tripLine("id0") + "\n" + bad + "\n"
	name := mustWriteTemp(t, content)
	defer os.Remove(name)

	src := csv.NewSource(csv.WithURL(name))
	sink := &captureSink{}
	ing := tripdk.NewIngester(src, trip.NewInclusive(), tripdk.NewBatcher(10, sink))

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.recs) != 2 {
		t.Fatalf("sunk records: %d", len(sink.recs))
	}
	if sink.recs[0]["data_category"] != string(trip.ValidComplete) {
		t.Fatalf("first category: %v", sink.recs[0]["data_category"])
	}
	if sink.recs[1]["data_category"] != string(trip.DataAnomaly) {
		t.Fatalf("second category: %v", sink.recs[1]["data_category"])
	}
}

func TestIngesterContextCancel(t *testing.T) {
	lines := []string{tripHeader}
	for i := 0; i < 100; i++ {
		lines = append(lines, tripLine(fmt.Sprintf("id%d", i)))
	}
	name := mustWriteTemp(t, strings.Join(lines, "\n")+"\n")
	defer os.Remove(name)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := csv.NewSource(csv.WithURL(name))
	ing := tripdk.NewIngester(src, trip.NewStrict(), tripdk.NewBatcher(10, &captureSink{}))
	if err := ing.Run(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
