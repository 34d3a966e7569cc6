package gtfs

import (
	"math"

	"planner.onebusaway.org/internal/utils"
)

const unknownDirection = ""

// ShapeBetween returns the trip's shape points from the one nearest to from up to
// the one nearest to to, as lat/lon pairs. Nil when the trip has no shape.
func (f *Feed) ShapeBetween(tripID string, from, to StopInfo) [][]float64 {
	trip, ok := f.scheduled[tripID]
	if !ok || trip.Shape == nil || len(trip.Shape.Points) < 2 || !from.HasLocation || !to.HasLocation {
		return nil
	}
	points := trip.Shape.Points

	nearest := func(lat, lon float64, start int) int {
		best, bestDist := start, math.Inf(1)
		for i := start; i < len(points); i++ {
			d := utils.Haversine(lat, lon, points[i].Latitude, points[i].Longitude)
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		return best
	}

	i := nearest(from.Lat, from.Lon, 0)
	j := nearest(to.Lat, to.Lon, i)
	out := make([][]float64, 0, j-i+1)
	for _, p := range points[i : j+1] {
		out = append(out, []float64{p.Latitude, p.Longitude})
	}
	return out
}

// StopDirection is the compass direction of travel away from a stop, taken from
// the first pattern that continues past it.
func (s *Snapshot) StopDirection(stop int) string {
	here := s.Feed.Stop(stop)
	if !here.HasLocation {
		return unknownDirection
	}
	for _, pi := range s.Data.PatternsForStop(stop) {
		p := s.Data.Pattern(pi)
		for pos := 0; pos+1 < p.NumberOfStops(); pos++ {
			if p.StopIndex(pos) != stop {
				continue
			}
			next := s.Feed.Stop(p.StopIndex(pos + 1))
			if next.HasLocation {
				return utils.CompassDirection(here.Lat, here.Lon, next.Lat, next.Lon)
			}
		}
	}
	return unknownDirection
}
