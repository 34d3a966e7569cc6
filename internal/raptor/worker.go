package raptor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Router runs searches against one immutable TransitData snapshot. It is safe for concurrent use;
// every search gets its own worker state.
type Router struct {
	data   *TransitData
	logger *slog.Logger
}

func NewRouter(data *TransitData, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{data: data, logger: logger.With(slog.String("component", "raptor"))}
}

func (r *Router) Data() *TransitData { return r.data }

// Stats describe the work done by one search.
type Stats struct {
	Iterations        int
	SkippedIterations int
	Rounds            int
	StopArrivals      int
	Duration          time.Duration
}

// Response holds the Pareto-optimal paths of a search, sorted by departure time.
type Response struct {
	Paths []*Path
	Stats Stats
}

// NoPathFound reports a search that completed without finding any path.
func (r *Response) NoPathFound() bool { return len(r.Paths) == 0 }

// Route runs a range raptor search. It returns an error wrapping ErrInvalidRequest for bad input
// and ErrAborted when ctx is done before the search completes. Finding no path is not an error.
func (r *Router) Route(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	nreq, err := req.normalized(r.data)
	if err != nil {
		return nil, err
	}

	w := newWorker(r.data, &nreq)
	if err := w.run(ctx); err != nil {
		r.logger.Info("routing search aborted",
			slog.String("profile", nreq.Profile.String()),
			slog.Int("iterations", w.stats.Iterations),
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	resp := &Response{Paths: w.dest.sortedPaths(), Stats: w.stats}
	resp.Stats.StopArrivals = w.state.stopArrivalCount()
	resp.Stats.Duration = time.Since(start)

	r.logger.Debug("routing search complete",
		slog.String("profile", nreq.Profile.String()),
		slog.String("direction", nreq.Direction.String()),
		slog.Int("iterations", resp.Stats.Iterations),
		slog.Int("skipped_iterations", resp.Stats.SkippedIterations),
		slog.Int("rounds", resp.Stats.Rounds),
		slog.Int("stop_arrivals", resp.Stats.StopArrivals),
		slog.Int("paths", len(resp.Paths)),
		slog.Duration("duration", resp.Stats.Duration))
	return resp, nil
}

// worker drives one search: iterations over the window, rounds within an iteration.
type worker struct {
	data     *TransitData
	req      *Request
	calc     TransitCalculator
	state    workerState
	std      *stdWorkerState
	strategy RoutingStrategy
	dest     *destinationArrivals
	paths    pathBuilder

	access    []AccessEgress
	egress    []AccessEgress
	minAccess int
	minEgress int

	searches     []*tripSearch
	constrained  []*ConstrainedBoardingSearch
	patternMarks []bool
	patternList  []int

	stats Stats
}

func newWorker(data *TransitData, req *Request) *worker {
	calc := newCalculator(req.Direction)
	mc := req.Profile == MultiCriteriaProfile
	w := &worker{
		data:         data,
		req:          req,
		calc:         calc,
		dest:         newDestinationArrivals(calc, req.maxRounds(), mc),
		paths:        pathBuilder{calc: calc, req: req, costs: newCostFactors(req.Cost), mc: mc},
		access:       req.searchAccess(),
		egress:       req.searchEgress(),
		searches:     make([]*tripSearch, data.NumberOfPatterns()),
		constrained:  make([]*ConstrainedBoardingSearch, data.NumberOfPatterns()),
		patternMarks: make([]bool, data.NumberOfPatterns()),
	}
	if mc {
		st := newMcWorkerState(data, calc, req)
		w.state, w.strategy = st, newMcStrategy(calc, st)
	} else {
		st := newStdWorkerState(data, calc, req, w.dest)
		w.state, w.strategy, w.std = st, newArrivalTimeStrategy(calc, st), st
	}
	for i := range w.constrained {
		w.constrained[i] = calc.constrainedBoardings(data, i)
	}
	w.minAccess = minDuration(w.access)
	w.minEgress = minDuration(w.egress)
	return w
}

func minDuration(legs []AccessEgress) int {
	m := legs[0].Duration
	for _, l := range legs[1:] {
		m = min(m, l.Duration)
	}
	return m
}

func aborted(err error) error {
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

func (w *worker) run(ctx context.Context) error {
	for t := range w.calc.Iterations(w.req) {
		if err := ctx.Err(); err != nil {
			return aborted(err)
		}
		if w.skipIteration(t) {
			w.stats.SkippedIterations++
			continue
		}
		w.stats.Iterations++
		if err := w.runIteration(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// skipIteration reports whether no path starting at t can join the result set. Only the standard
// profile skips; a multi-criteria path may still win on cost.
func (w *worker) skipIteration(t int) bool {
	if w.std == nil {
		return false
	}
	if h := w.req.Heuristics; h != nil {
		reachable := false
		for _, leg := range w.access {
			at := w.calc.TimeAfterLeg(leg, t)
			if at != NotAvailable && h.Reachable(leg.Stop, at) {
				reachable = true
				break
			}
		}
		if !reachable {
			return true
		}
	}
	if w.std.dest == nil {
		return false
	}
	// every path has at least one ride, so it must beat the best single ride arrival
	best := w.dest.bestTime(1)
	lowerBound := w.calc.PlusDuration(t, w.minAccess+w.minEgress)
	return best != w.calc.UnreachedTime() && !w.calc.IsBefore(lowerBound, best)
}

func (w *worker) runIteration(ctx context.Context, t int) error {
	w.state.setupIteration(t)
	for i, leg := range w.access {
		w.strategy.SetAccessToStop(i, leg)
	}
	w.state.roundComplete()

	maxRounds := w.req.maxRounds()
	for w.state.isNewRoundAvailable() && w.state.round() < maxRounds {
		if err := ctx.Err(); err != nil {
			return aborted(err)
		}
		w.state.prepareForNextRound()
		w.stats.Rounds++

		w.findTransitForRound()
		w.state.transferToStops()
		w.harvestEgress(t)
		w.state.roundComplete()
	}
	return nil
}

func (w *worker) findTransitForRound() {
	boardSlack, alightSlack := w.calc.SearchSlack(w.req.Slack, w.state.round())

	for _, pi := range w.patternsToScan() {
		p := w.data.Pattern(pi)
		if p.NumberOfTrips() == 0 {
			continue
		}
		search := w.tripSearch(pi)
		tx := w.constrained[pi]
		w.strategy.PrepareForTransitWith(p, search)

		for pos := range w.calc.PatternStops(p.NumberOfStops()) {
			stop := p.StopIndex(pos)
			if w.calc.AlightingPossible(p, pos) {
				w.strategy.Alight(stop, pos, alightSlack)
			}
			if !w.calc.BoardingPossible(p, pos) || !w.state.isStopReachedInPreviousRound(stop) {
				continue
			}
			if tx.TransferExistsAt(pos) {
				w.strategy.BoardWithConstrainedTransfer(stop, pos, boardSlack, tx)
			} else {
				w.strategy.BoardWithRegularTransfer(stop, pos, boardSlack)
			}
		}
	}
}

// patternsToScan returns the patterns visiting a stop reached in the previous round, in index
// order so results do not depend on map or insertion order.
func (w *worker) patternsToScan() []int {
	w.patternList = w.patternList[:0]
	for _, stop := range w.state.stopsReachedInPreviousRound() {
		for _, pi := range w.data.PatternsForStop(stop) {
			if !w.patternMarks[pi] {
				w.patternMarks[pi] = true
				w.patternList = append(w.patternList, pi)
			}
		}
	}
	for _, pi := range w.patternList {
		w.patternMarks[pi] = false
	}
	slices.Sort(w.patternList)
	return w.patternList
}

func (w *worker) tripSearch(pi int) *tripSearch {
	if w.searches[pi] == nil {
		w.searches[pi] = w.calc.newTripSearch(w.data.Pattern(pi))
	}
	return w.searches[pi]
}

func (w *worker) harvestEgress(iterationTime int) {
	round := w.state.round()
	cutoff := w.calc.PlusDuration(iterationTime, w.req.MaxDuration)
	a := w.state.arrivals()
	for i, leg := range w.egress {
		for _, idx := range w.state.transitArrivalsAt(leg.Stop) {
			destTime := w.calc.TimeAfterLeg(leg, a.get(idx).time)
			if destTime == NotAvailable || w.calc.IsBefore(cutoff, destTime) {
				continue
			}
			w.dest.add(w.paths.build(a, i, leg, idx), round, destTime)
		}
	}
}
