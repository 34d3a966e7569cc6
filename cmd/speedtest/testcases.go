package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/routing"
)

// testCase is one row of the test case file. Endpoints are a stop id or a coordinate.
type testCase struct {
	ID           string  `csv:"id"`
	Description  string  `csv:"description"`
	FromStop     string  `csv:"fromStop"`
	FromLat      float64 `csv:"fromLat"`
	FromLon      float64 `csv:"fromLon"`
	ToStop       string  `csv:"toStop"`
	ToLat        float64 `csv:"toLat"`
	ToLon        float64 `csv:"toLon"`
	Time         string  `csv:"time"` // HH:MM on the test date
	ArriveBy     bool    `csv:"arriveBy"`
	Window       int     `csv:"window"` // minutes
	Optimize     string  `csv:"optimize"`
	MaxTransfers string  `csv:"maxTransfers"`
}

// caseResult is one row of the results file.
type caseResult struct {
	ID          string `csv:"id"`
	Status      string `csv:"status"`
	Itineraries int    `csv:"itineraries"`
	Departure   string `csv:"departure"`
	Arrival     string `csv:"arrival"`
	Duration    int    `csv:"durationSeconds"`
	Transfers   int    `csv:"transfers"`
	Iterations  int    `csv:"iterations"`
	Millis      int64  `csv:"millis"`
	Error       string `csv:"error"`
}

func readTestCases(r io.Reader) ([]testCase, error) {
	var cases []testCase
	if err := gocsv.Unmarshal(r, &cases); err != nil {
		return nil, fmt.Errorf("reading test cases: %w", err)
	}
	return cases, nil
}

func writeResults(w io.Writer, results []caseResult) error {
	return gocsv.Marshal(results, w)
}

func location(stop string, lat, lon float64) routing.Location {
	if stop != "" {
		return routing.Location{StopID: stop}
	}
	return routing.Location{Lat: lat, Lon: lon}
}

// request turns the case into a plan request on date, in loc.
func (c testCase) request(date time.Time, loc *time.Location) (routing.PlanRequest, error) {
	clock, err := time.Parse("15:04", c.Time)
	if err != nil {
		return routing.PlanRequest{}, fmt.Errorf("case %s: invalid time %q", c.ID, c.Time)
	}
	y, m, d := date.Date()
	req := routing.PlanRequest{
		From:         location(c.FromStop, c.FromLat, c.FromLon),
		To:           location(c.ToStop, c.ToLat, c.ToLon),
		Time:         time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc),
		ArriveBy:     c.ArriveBy,
		SearchWindow: time.Duration(c.Window) * time.Minute,
		Optimize:     c.Optimize,
	}
	if c.MaxTransfers != "" {
		n, err := strconv.Atoi(c.MaxTransfers)
		if err != nil {
			return routing.PlanRequest{}, fmt.Errorf("case %s: invalid maxTransfers %q", c.ID, c.MaxTransfers)
		}
		req.MaxTransfers = &n
	}
	return req, nil
}

func summarize(id string, res routing.BatchResult, loc *time.Location) caseResult {
	out := caseResult{ID: id}
	if res.Err != nil {
		out.Status = "ERROR"
		out.Error = res.Err.Error()
		return out
	}
	plan := res.Result.Plan
	out.Status = plan.SearchStatus
	out.Itineraries = len(plan.Itineraries)
	out.Iterations = plan.Stats.Iterations
	out.Millis = plan.Stats.DurationMs
	if len(plan.Itineraries) > 0 {
		best := bestItinerary(plan.Itineraries)
		out.Departure = time.UnixMilli(best.StartTime).In(loc).Format("15:04:05")
		out.Arrival = time.UnixMilli(best.EndTime).In(loc).Format("15:04:05")
		out.Duration = best.Duration
		out.Transfers = best.Transfers
	}
	return out
}

// bestItinerary is the shortest itinerary, fewer transfers breaking ties.
func bestItinerary(its []models.Itinerary) models.Itinerary {
	best := its[0]
	for _, it := range its[1:] {
		if it.Duration < best.Duration || (it.Duration == best.Duration && it.Transfers < best.Transfers) {
			best = it
		}
	}
	return best
}
