package webui

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"

	"planner.onebusaway.org/internal/gtfs"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

var dataTypes = []string{
	"snapshot", "patterns", "footpaths", "constraints", "delays",
	"agencies", "stops", "warnings", "realtime_trips", "realtime_vehicles",
}

type debugData struct {
	Title string
	Pre   string
	Types []string
}

type snapshotSummary struct {
	Version      uint64
	ServiceDate  time.Time
	BuiltAt      time.Time
	RealtimeAt   time.Time
	FeedHash     string
	FeedSource   string
	Stops        int
	Patterns     int
	Footpaths    int
	Constraints  int
	DelayedTrips int
	SkippedTrips int
}

type patternSummary struct {
	Index   int
	RouteID string
	Name    string
	Stops   []string
	Trips   []string
}

// WebUI serves the debug pages.
type WebUI struct {
	GtfsManager *gtfs.Manager
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{
		Title: title,
		Pre:   spew.Sdump(data),
		Types: dataTypes,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func patterns(snap *gtfs.Snapshot) []patternSummary {
	out := make([]patternSummary, 0, snap.Data.NumberOfPatterns())
	for i := range snap.Data.NumberOfPatterns() {
		p := snap.Data.Pattern(i)
		s := patternSummary{Index: p.Index, RouteID: p.RouteID, Name: p.Name}
		for pos := range p.NumberOfStops() {
			s.Stops = append(s.Stops, snap.Feed.Stop(p.StopIndex(pos)).ID)
		}
		for t := range p.NumberOfTrips() {
			s.Trips = append(s.Trips, p.Trip(t).ID)
		}
		out = append(out, s)
	}
	return out
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	dataType := r.URL.Query().Get("dataType")

	snap := webUI.GtfsManager.Snapshot()
	if snap == nil {
		writeDebugData(w, "No data loaded", map[string]string{"error": "the GTFS feed has not been loaded yet"})
		return
	}
	feed := snap.Feed

	var data interface{}
	var title string

	switch dataType {
	case "", "snapshot":
		data = snapshotSummary{
			Version:      snap.Version,
			ServiceDate:  snap.ServiceDate,
			BuiltAt:      snap.BuiltAt,
			RealtimeAt:   snap.RealtimeTimestamp(),
			FeedHash:     feed.Hash,
			FeedSource:   feed.Source,
			Stops:        snap.Data.NumberOfStops(),
			Patterns:     snap.Data.NumberOfPatterns(),
			Footpaths:    len(feed.Footpaths()),
			Constraints:  len(feed.Constraints()),
			DelayedTrips: snap.DelayedTrips,
			SkippedTrips: snap.SkippedTrips,
		}
		title = "Routing Snapshot"
	case "patterns":
		data = patterns(snap)
		title = "Routing Snapshot - Patterns"
	case "footpaths":
		data = feed.Footpaths()
		title = "Routing Snapshot - Footpaths"
	case "constraints":
		data = feed.Constraints()
		title = "Routing Snapshot - Transfer Constraints"
	case "delays":
		data = webUI.GtfsManager.Delays()
		title = "GTFS Realtime - Trip Delays"
	case "agencies":
		data = feed.Static.Agencies
		title = "GTFS Static - Agencies"
	case "stops":
		data = feed.Static.Stops
		title = "GTFS Static - Stops"
	case "warnings":
		data = feed.Static.Warnings
		title = "GTFS Static - Parse Warnings"
	case "realtime_trips":
		data = webUI.GtfsManager.GetRealTimeTrips()
		title = "GTFS Realtime - Trips"
	case "realtime_vehicles":
		data = webUI.GtfsManager.GetRealTimeVehicles()
		title = "GTFS Realtime - Vehicles"
	default:
		data = map[string][]string{"error": {"unknown data type, use one of:"}, "types": dataTypes}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}
