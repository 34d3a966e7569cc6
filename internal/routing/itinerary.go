package routing

import (
	"math"

	"github.com/twpayne/go-polyline"

	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/utils"
)

func (p *Planner) place(snap *gtfs.Snapshot, loc Location, name string) models.Place {
	if !loc.IsStop() {
		return models.Place{Name: name, Lat: loc.Lat, Lon: loc.Lon}
	}
	idx, ok := snap.Feed.StopIndex(loc.StopID)
	if !ok {
		return models.Place{Name: name, StopID: loc.StopID}
	}
	s := snap.Feed.Stop(idx)
	return models.Place{Name: s.Name, StopID: utils.FormCombinedID(snap.Feed.AgencyID, s.ID), Lat: s.Lat, Lon: s.Lon}
}

// itineraryMapper turns router paths into API itineraries and collects their references.
type itineraryMapper struct {
	snap           *gtfs.Snapshot
	fromPlace      models.Place
	toPlace        models.Place
	access, egress endpoint
	refs           *models.ReferencesModel
}

func (m *itineraryMapper) ms(sec int) int64 { return m.snap.TimeOf(sec).UnixMilli() }

func (m *itineraryMapper) stopPlace(i int) models.Place {
	stop := m.snap.AddStopReferences(m.refs, i)
	return models.Place{Name: stop.Name, StopID: stop.ID, Lat: stop.Lat, Lon: stop.Lon}
}

func encode(places ...models.Place) string {
	coords := make([][]float64, 0, len(places))
	for _, p := range places {
		if p.Lat == 0 && p.Lon == 0 {
			continue
		}
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	if len(coords) < 2 {
		return ""
	}
	return string(polyline.EncodeCoords(coords))
}

func (m *itineraryMapper) walkLeg(from, to models.Place, leg raptor.Leg, distance float64) models.Leg {
	mode := models.ModeWalk
	if from.StopID != "" && from.StopID == to.StopID {
		mode = models.ModeTransfer
	}
	return models.Leg{
		Mode:      mode,
		From:      from,
		To:        to,
		StartTime: m.ms(leg.StartTime),
		EndTime:   m.ms(leg.EndTime),
		Duration:  leg.Duration(),
		Distance:  int(math.Round(distance)),
		Geometry:  encode(from, to),
		Direction: utils.CompassDirection(from.Lat, from.Lon, to.Lat, to.Lon),
	}
}

func (m *itineraryMapper) transitLeg(leg raptor.Leg) models.Leg {
	feed := m.snap.Feed
	trip := leg.Trip
	info, _ := feed.Trip(trip.ID)
	route, _ := feed.Route(info.RouteID)
	pattern := trip.Pattern()

	from, to := m.stopPlace(leg.FromStop), m.stopPlace(leg.ToStop)
	var intermediate []models.Place
	for pos := leg.FromPos + 1; pos < leg.ToPos; pos++ {
		intermediate = append(intermediate, m.stopPlace(pattern.StopIndex(pos)))
	}

	var distance float64
	geometry := ""
	if shape := feed.ShapeBetween(trip.ID, feed.Stop(leg.FromStop), feed.Stop(leg.ToStop)); shape != nil {
		geometry = string(polyline.EncodeCoords(shape))
		for i := 1; i < len(shape); i++ {
			distance += utils.Haversine(shape[i-1][0], shape[i-1][1], shape[i][0], shape[i][1])
		}
	} else {
		places := append(append([]models.Place{from}, intermediate...), to)
		geometry = encode(places...)
		for i := 1; i < len(places); i++ {
			distance += utils.Haversine(places[i-1].Lat, places[i-1].Lon, places[i].Lat, places[i].Lon)
		}
	}

	tripRef := feed.AddTripReferences(m.refs, trip.ID)

	return models.Leg{
		Mode:               models.ModeTransit,
		From:               from,
		To:                 to,
		StartTime:          m.ms(leg.StartTime),
		EndTime:            m.ms(leg.EndTime),
		Duration:           leg.Duration(),
		Distance:           int(math.Round(distance)),
		RouteID:            tripRef.RouteID,
		RouteShortName:     route.DisplayName(),
		TripID:             tripRef.ID,
		TripHeadsign:       tripRef.TripHeadsign,
		IntermediateStops:  intermediate,
		Geometry:           geometry,
		GuaranteedTransfer: leg.Constraint != nil && leg.Constraint.Guaranteed,
	}
}

func (m *itineraryMapper) itinerary(path *raptor.Path) models.Itinerary {
	it := models.Itinerary{
		StartTime:       m.ms(path.StartTime),
		EndTime:         m.ms(path.EndTime),
		Duration:        path.Duration(),
		Transfers:       path.NumberOfTransfers,
		GeneralizedCost: path.GeneralizedCost / 100,
		Legs:            []models.Leg{},
	}

	for _, leg := range path.Legs {
		var l models.Leg
		switch leg.Kind {
		case raptor.AccessLeg:
			if leg.Duration() == 0 {
				continue
			}
			l = m.walkLeg(m.fromPlace, m.stopPlace(leg.ToStop), leg, m.access.distance[leg.LegIndex])
		case raptor.EgressLeg:
			if leg.Duration() == 0 {
				continue
			}
			l = m.walkLeg(m.stopPlace(leg.FromStop), m.toPlace, leg, m.egress.distance[leg.LegIndex])
		case raptor.TransferLeg:
			from, to := m.stopPlace(leg.FromStop), m.stopPlace(leg.ToStop)
			l = m.walkLeg(from, to, leg, utils.Haversine(from.Lat, from.Lon, to.Lat, to.Lon))
		case raptor.TransitLeg:
			l = m.transitLeg(leg)
		}

		if l.Mode == models.ModeTransit {
			it.TransitTime += l.Duration
		} else {
			it.WalkTime += l.Duration
		}
		it.Legs = append(it.Legs, l)
	}

	it.WaitingTime = max(0, it.Duration-it.WalkTime-it.TransitTime)
	return it
}
