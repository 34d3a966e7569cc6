// Package gtfstest builds small GTFS feeds in memory for tests.
package gtfstest

import (
	"archive/zip"
	"bytes"
	"maps"
	"slices"
	"testing"
)

// Default feed, agency time zone America/Los_Angeles, service every day of 2025-2035.
//
// Stops along a north-south line: A, B, C roughly 1.1 km apart. D is about 100 m
// from B, E is 1.6 km east of D, F is far from everything.
//
//	R1: T1 A 08:00 B 08:10 C 08:20, T2 A 08:30 B 08:40 C 08:50
//	R2: T3 D 08:15 E 08:30, T4 D 08:45 E 09:00
var defaultFiles = map[string]string{
	"agency.txt": `agency_id,agency_name,agency_url,agency_timezone
40,Test Transit,https://example.com,America/Los_Angeles
`,
	"calendar.txt": `service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date
ALL,1,1,1,1,1,1,1,20250101,20351231
`,
	"stops.txt": `stop_id,stop_code,stop_name,stop_lat,stop_lon
A,1001,Alpha,47.6000,-122.3300
B,1002,Bravo,47.6100,-122.3300
C,1003,Charlie,47.6200,-122.3300
D,1004,Delta,47.6105,-122.3310
E,1005,Echo,47.6105,-122.3100
F,1006,Foxtrot,47.7000,-122.4000
`,
	"routes.txt": `route_id,agency_id,route_short_name,route_long_name,route_type
R1,40,1,North Line,3
R2,40,2,East Line,3
`,
	"trips.txt": `route_id,service_id,trip_id,trip_headsign
R1,ALL,T1,Charlie
R1,ALL,T2,Charlie
R2,ALL,T3,Echo
R2,ALL,T4,Echo
`,
	"stop_times.txt": `trip_id,arrival_time,departure_time,stop_id,stop_sequence
T1,08:00:00,08:00:00,A,1
T1,08:10:00,08:10:00,B,2
T1,08:20:00,08:20:00,C,3
T2,08:30:00,08:30:00,A,1
T2,08:40:00,08:40:00,B,2
T2,08:50:00,08:50:00,C,3
T3,08:15:00,08:15:00,D,1
T3,08:30:00,08:30:00,E,2
T4,08:45:00,08:45:00,D,1
T4,09:00:00,09:00:00,E,2
`,
}

// Feed is a set of GTFS files.
type Feed struct {
	files map[string]string
}

// Default returns a copy of the default feed.
func Default() *Feed {
	return &Feed{files: maps.Clone(defaultFiles)}
}

// With replaces or adds a file.
func (f *Feed) With(name, content string) *Feed {
	f.files[name] = content
	return f
}

// Without removes a file.
func (f *Feed) Without(name string) *Feed {
	delete(f.files, name)
	return f
}

// Zip returns the feed as a zip archive.
func (f *Feed) Zip(tb testing.TB) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(f.files)) {
		fw, err := w.Create(name)
		if err != nil {
			tb.Fatalf("creating %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(f.files[name])); err != nil {
			tb.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}
