package routing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bluele/gcache"

	"planner.onebusaway.org/gtfsdb"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/raptor"
)

// endpoint is the access or egress side of a search.
type endpoint struct {
	legs []raptor.AccessEgress
	// walking distance in meters by leg index, coordinate endpoints only
	distance []float64
}

// accessEgress finds the stops a rider can start or end at. A stop id yields that stop,
// plus its platforms when it is a station, with no walking. A coordinate yields every stop
// within the walking distance.
func (p *Planner) accessEgress(ctx context.Context, snap *gtfs.Snapshot, loc Location, opts searchOptions) (endpoint, error) {
	var e endpoint
	if loc.IsStop() {
		idx, ok := snap.Feed.StopIndex(loc.StopID)
		if !ok {
			return e, fmt.Errorf("%w: %s", ErrUnknownStop, loc.StopID)
		}
		e.legs = append(e.legs, raptor.AccessEgress{Stop: idx})
		for _, child := range snap.Feed.ChildStops(loc.StopID) {
			e.legs = append(e.legs, raptor.AccessEgress{Stop: child})
		}
		e.distance = make([]float64, len(e.legs))
		return e, nil
	}

	nearby, err := p.nearbyStops(ctx, snap.Feed.Hash, loc.Lat, loc.Lon, opts.maxWalkDistance)
	if err != nil {
		return e, err
	}
	for _, n := range nearby {
		idx, ok := snap.Feed.StopIndex(n.ID)
		if !ok {
			continue
		}
		e.legs = append(e.legs, raptor.AccessEgress{Stop: idx, Duration: int(math.Ceil(n.Distance / opts.walkSpeed))})
		e.distance = append(e.distance, n.Distance)
	}
	return e, nil
}

// nearbyStops memoizes stop lookups per feed version. Coordinates are rounded to about a meter.
func (p *Planner) nearbyStops(ctx context.Context, feedHash string, lat, lon, radius float64) ([]gtfsdb.NearbyStop, error) {
	key := fmt.Sprintf("%s|%.5f|%.5f|%.0f", feedHash, lat, lon, radius)
	if cached, err := p.nearby.Get(key); err == nil {
		if p.metrics != nil {
			p.metrics.NearbyCacheHits.Inc()
		}
		return cached.([]gtfsdb.NearbyStop), nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.NearbyCacheMisses.Inc()
	}
	nearby, err := p.stops.NearbyStops(ctx, lat, lon, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("finding stops near %.5f,%.5f: %w", lat, lon, err)
	}
	_ = p.nearby.Set(key, nearby)
	return nearby, nil
}
