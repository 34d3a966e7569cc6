package raptor

import (
	"context"
	"fmt"
	"math"
)

// Heuristics bound where a stop must be reached to still make it to the destination within the
// search. They come from a single standard search in the opposite direction.
type Heuristics struct {
	direction Direction
	times     []int
}

// Reachable reports whether a rider at stop at time t can still reach the destination.
func (h *Heuristics) Reachable(stop, t int) bool {
	limit := h.times[stop]
	if h.direction == Forward {
		return limit != math.MinInt32 && t <= limit
	}
	return limit != math.MaxInt32 && t >= limit
}

// StopReachable reports whether the destination can be reached from stop at all.
func (h *Heuristics) StopReachable(stop int) bool {
	if h.direction == Forward {
		return h.times[stop] != math.MinInt32
	}
	return h.times[stop] != math.MaxInt32
}

// Heuristics runs the opposite direction search for req. Forward requests get, per stop, the
// latest time a rider can be there and still arrive before the end of the search; reverse
// requests get the earliest time a rider can be there after leaving the origin.
func (r *Router) Heuristics(ctx context.Context, req Request) (*Heuristics, error) {
	nreq, err := req.normalized(r.data)
	if err != nil {
		return nil, err
	}

	h := nreq
	h.Profile = StandardProfile
	h.SearchWindow = 0
	h.Heuristics = nil
	h.Debug = DebugOptions{}
	// transfer slack lands on different boardings when the search runs backwards
	h.Slack.Transfer = 0
	if nreq.Direction == Forward {
		h.Direction = Reverse
		h.LatestArrivalTime = nreq.EarliestDepartureTime + nreq.SearchWindow + nreq.MaxDuration
		h.MaxDuration = nreq.SearchWindow + nreq.MaxDuration
	} else {
		h.Direction = Forward
		h.EarliestDepartureTime = max(0, nreq.LatestArrivalTime-nreq.SearchWindow-nreq.MaxDuration)
		h.MaxDuration = max(1, nreq.LatestArrivalTime-h.EarliestDepartureTime)
	}

	w := newWorker(r.data, &h)
	w.std.dest = nil
	if err := w.run(ctx); err != nil {
		return nil, fmt.Errorf("heuristic search: %w", err)
	}
	return &Heuristics{direction: nreq.Direction, times: w.std.bestTimes()}, nil
}
