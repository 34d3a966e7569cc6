package raptor

// mcWorkerState keeps a Pareto set of arrivals per stop over arrival time, rounds, generalized
// cost and whether the arrival came by transit. Boarding only reads arrivals created in the
// previous round of the current iteration.
type mcWorkerState struct {
	data     *TransitData
	calc     TransitCalculator
	heur     *Heuristics
	notifier arrivalNotifier
	costs    costFactors

	maxDuration  int
	iteration    int
	cutoff       int
	currentRound int

	sets           []*paretoSet[int32]
	touched        *stopSet
	reachedCurrent *stopSet
	reachedPrev    *stopSet
	prevArrivals   [][]int32
	transitRound   []int32

	arena        arena
	stopArrivals int
}

func newMcWorkerState(data *TransitData, calc TransitCalculator, req *Request) *mcWorkerState {
	n := data.NumberOfStops()
	return &mcWorkerState{
		data:           data,
		calc:           calc,
		heur:           req.Heuristics,
		notifier:       arrivalNotifier{listener: req.Debug.StopArrivalListener},
		costs:          newCostFactors(req.Cost),
		maxDuration:    req.MaxDuration,
		sets:           make([]*paretoSet[int32], n),
		touched:        newStopSet(n),
		reachedCurrent: newStopSet(n),
		reachedPrev:    newStopSet(n),
		prevArrivals:   make([][]int32, n),
	}
}

// dominates compares two arrivals at the same stop.
func (s *mcWorkerState) dominates(a, b int32) bool {
	ra, rb := s.arena.get(a), s.arena.get(b)
	if s.calc.IsBefore(rb.time, ra.time) {
		return false
	}
	if ra.round > rb.round || ra.cost > rb.cost {
		return false
	}
	// only transit arrivals may continue with a transfer or egress
	return ra.kind == kindTransit || rb.kind != kindTransit
}

func (s *mcWorkerState) setupIteration(iterationTime int) {
	for _, stop := range s.touched.stops() {
		s.sets[stop].reset()
		s.prevArrivals[stop] = s.prevArrivals[stop][:0]
	}
	s.touched.clear()
	s.reachedCurrent.clear()
	s.reachedPrev.clear()
	s.transitRound = s.transitRound[:0]
	s.arena.reset()
	s.currentRound = 0
	s.iteration = iterationTime
	s.cutoff = s.calc.PlusDuration(iterationTime, s.maxDuration)
}

func (s *mcWorkerState) round() int { return s.currentRound }

func (s *mcWorkerState) prepareForNextRound() {
	s.currentRound++
	s.transitRound = s.transitRound[:0]
}

func (s *mcWorkerState) isNewRoundAvailable() bool { return !s.reachedPrev.empty() }

func (s *mcWorkerState) stopsReachedInPreviousRound() []int { return s.reachedPrev.stops() }

func (s *mcWorkerState) isStopReachedInPreviousRound(stop int) bool {
	return s.reachedPrev.contains(stop)
}

func (s *mcWorkerState) arrivals() *arena { return &s.arena }

func (s *mcWorkerState) stopArrivalCount() int { return s.stopArrivals }

func (s *mcWorkerState) rejected(stop, t int) bool {
	if s.calc.IsBefore(s.cutoff, t) {
		return true
	}
	return s.heur != nil && !s.heur.Reachable(stop, t)
}

// add inserts the arrival into the stop's Pareto set, returning its index or noArrival.
func (s *mcWorkerState) add(rec stopArrival) int32 {
	if s.rejected(rec.stop, rec.time) {
		return noArrival
	}
	rec.round = s.currentRound
	idx := s.arena.add(rec)
	set := s.sets[rec.stop]
	if set == nil {
		set = newParetoSet(s.dominates)
		s.sets[rec.stop] = set
	}
	if !set.add(idx) {
		s.arena.pop()
		return noArrival
	}
	s.touched.add(rec.stop)
	s.reachedCurrent.add(rec.stop)
	s.stopArrivals++
	s.notifier.notify(&s.arena, s.iteration, s.arena.get(idx))
	return idx
}

func (s *mcWorkerState) setAccessToStop(legIndex int, leg AccessEgress) {
	t := s.calc.TimeAfterLeg(leg, s.iteration)
	if t == NotAvailable {
		return
	}
	s.add(stopArrival{
		kind:     kindAccess,
		stop:     leg.Stop,
		time:     t,
		previous: noArrival,
		legIndex: legIndex,
		cost:     s.costs.walk * leg.Duration,
	})
}

func (s *mcWorkerState) transitToStop(rec stopArrival) {
	rec.kind = kindTransit
	if idx := s.add(rec); idx != noArrival {
		s.transitRound = append(s.transitRound, idx)
	}
}

func (s *mcWorkerState) alive(idx int32) bool {
	set := s.sets[s.arena.get(idx).stop]
	for _, e := range set.all() {
		if e == idx {
			return true
		}
	}
	return false
}

func (s *mcWorkerState) transferToStops() {
	transits := append([]int32(nil), s.transitRound...)
	for _, idx := range transits {
		if !s.alive(idx) {
			continue
		}
		from := s.arena.get(idx)
		fromStop, t0, cost := from.stop, from.time, from.cost
		for _, tr := range s.calc.Transfers(s.data, fromStop) {
			to := s.calc.TransferTarget(tr)
			if to == fromStop {
				continue
			}
			s.add(stopArrival{
				kind:     kindTransfer,
				stop:     to,
				time:     s.calc.PlusDuration(t0, tr.Duration),
				previous: idx,
				duration: tr.Duration,
				cost:     cost + s.costs.walk*tr.Duration,
			})
		}
	}
}

func (s *mcWorkerState) transitArrivalsAt(stop int) []int32 {
	set := s.sets[stop]
	if set == nil {
		return nil
	}
	var out []int32
	for _, idx := range set.all() {
		rec := s.arena.get(idx)
		if rec.kind == kindTransit && rec.round == s.currentRound {
			out = append(out, idx)
		}
	}
	return out
}

func (s *mcWorkerState) roundComplete() {
	s.reachedPrev.clear()
	for _, stop := range s.reachedCurrent.stops() {
		list := s.prevArrivals[stop][:0]
		for _, idx := range s.sets[stop].all() {
			if s.arena.get(idx).round == s.currentRound {
				list = append(list, idx)
			}
		}
		s.prevArrivals[stop] = list
		if len(list) > 0 {
			s.reachedPrev.add(stop)
		}
	}
	s.reachedCurrent.clear()
}

// previousRoundArrivals returns the arrivals at stop boarding may use in the current round.
func (s *mcWorkerState) previousRoundArrivals(stop int) []int32 {
	if !s.reachedPrev.contains(stop) {
		return nil
	}
	return s.prevArrivals[stop]
}
