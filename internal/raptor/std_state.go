package raptor

// stdWorkerState tracks the best arrival time per stop. Only two rounds are live: times holds the
// round in progress, prevTimes the committed result of the previous round, which is all boarding
// may read.
type stdWorkerState struct {
	data     *TransitData
	calc     TransitCalculator
	heur     *Heuristics
	dest     *destinationArrivals
	notifier arrivalNotifier

	maxDuration  int
	iteration    int
	cutoff       int
	currentRound int

	times        []int
	prevTimes    []int
	transitTimes []int
	best         []int32
	prevBest     []int32
	bestTransit  []int32

	reachedCurrent *stopSet
	reachedPrev    *stopSet
	transitReached *stopSet
	touched        *stopSet

	arena        arena
	stopArrivals int
}

func newStdWorkerState(data *TransitData, calc TransitCalculator, req *Request, dest *destinationArrivals) *stdWorkerState {
	n := data.NumberOfStops()
	s := &stdWorkerState{
		data:           data,
		calc:           calc,
		heur:           req.Heuristics,
		dest:           dest,
		notifier:       arrivalNotifier{listener: req.Debug.StopArrivalListener},
		maxDuration:    req.MaxDuration,
		times:          make([]int, n),
		prevTimes:      make([]int, n),
		transitTimes:   make([]int, n),
		best:           make([]int32, n),
		prevBest:       make([]int32, n),
		bestTransit:    make([]int32, n),
		reachedCurrent: newStopSet(n),
		reachedPrev:    newStopSet(n),
		transitReached: newStopSet(n),
		touched:        newStopSet(n),
	}
	for stop := 0; stop < n; stop++ {
		s.resetStop(stop)
	}
	return s
}

func (s *stdWorkerState) resetStop(stop int) {
	unreached := s.calc.UnreachedTime()
	s.times[stop] = unreached
	s.prevTimes[stop] = unreached
	s.transitTimes[stop] = unreached
	s.best[stop] = noArrival
	s.prevBest[stop] = noArrival
	s.bestTransit[stop] = noArrival
}

func (s *stdWorkerState) setupIteration(iterationTime int) {
	for _, stop := range s.touched.stops() {
		s.resetStop(stop)
	}
	s.touched.clear()
	s.reachedCurrent.clear()
	s.reachedPrev.clear()
	s.transitReached.clear()
	s.arena.reset()
	s.currentRound = 0
	s.iteration = iterationTime
	s.cutoff = s.calc.PlusDuration(iterationTime, s.maxDuration)
}

func (s *stdWorkerState) round() int { return s.currentRound }

func (s *stdWorkerState) prepareForNextRound() {
	s.currentRound++
	s.transitReached.clear()
}

func (s *stdWorkerState) isNewRoundAvailable() bool { return !s.reachedPrev.empty() }

func (s *stdWorkerState) stopsReachedInPreviousRound() []int { return s.reachedPrev.stops() }

func (s *stdWorkerState) isStopReachedInPreviousRound(stop int) bool {
	return s.reachedPrev.contains(stop)
}

func (s *stdWorkerState) arrivals() *arena { return &s.arena }

func (s *stdWorkerState) stopArrivalCount() int { return s.stopArrivals }

// rejected reports whether an arrival is past the cut-off, can not reach the destination in time,
// or can not beat a destination arrival already found with as many rounds.
func (s *stdWorkerState) rejected(stop, t int) bool {
	if s.calc.IsBefore(s.cutoff, t) {
		return true
	}
	if s.heur != nil && !s.heur.Reachable(stop, t) {
		return true
	}
	return s.dest != nil && !s.calc.IsBefore(t, s.dest.bestTime(s.currentRound))
}

func (s *stdWorkerState) setAccessToStop(legIndex int, leg AccessEgress) {
	t := s.calc.TimeAfterLeg(leg, s.iteration)
	if t == NotAvailable {
		return
	}
	stop := leg.Stop
	if !s.calc.IsBefore(t, s.times[stop]) || s.rejected(stop, t) {
		return
	}
	idx := s.arena.add(stopArrival{
		kind:     kindAccess,
		stop:     stop,
		round:    s.currentRound,
		time:     t,
		previous: noArrival,
		legIndex: legIndex,
	})
	s.touched.add(stop)
	s.times[stop] = t
	s.best[stop] = idx
	s.reachedCurrent.add(stop)
	s.accepted(idx)
}

// transitToStop is the single mutation point for transit arrivals. The arrival is kept when it
// beats the best transit arrival at the stop; it becomes the stop's best arrival only when it
// also beats arrivals by transfer.
func (s *stdWorkerState) transitToStop(rec stopArrival) {
	stop, t := rec.stop, rec.time
	if !s.calc.IsBefore(t, s.transitTimes[stop]) || s.rejected(stop, t) {
		return
	}
	rec.kind = kindTransit
	rec.round = s.currentRound
	idx := s.arena.add(rec)
	s.touched.add(stop)
	s.transitTimes[stop] = t
	s.bestTransit[stop] = idx
	s.transitReached.add(stop)
	if s.calc.IsBefore(t, s.times[stop]) {
		s.times[stop] = t
		s.best[stop] = idx
		s.reachedCurrent.add(stop)
	}
	s.accepted(idx)
}

func (s *stdWorkerState) transferToStops() {
	for _, from := range s.transitReached.stops() {
		t0 := s.transitTimes[from]
		prev := s.bestTransit[from]
		for _, tr := range s.calc.Transfers(s.data, from) {
			to := s.calc.TransferTarget(tr)
			if to == from {
				continue
			}
			t := s.calc.PlusDuration(t0, tr.Duration)
			if !s.calc.IsBefore(t, s.times[to]) || s.rejected(to, t) {
				continue
			}
			idx := s.arena.add(stopArrival{
				kind:     kindTransfer,
				stop:     to,
				round:    s.currentRound,
				time:     t,
				previous: prev,
				duration: tr.Duration,
			})
			s.touched.add(to)
			s.times[to] = t
			s.best[to] = idx
			s.reachedCurrent.add(to)
			s.accepted(idx)
		}
	}
}

func (s *stdWorkerState) transitArrivalsAt(stop int) []int32 {
	if !s.transitReached.contains(stop) {
		return nil
	}
	return []int32{s.bestTransit[stop]}
}

func (s *stdWorkerState) roundComplete() {
	s.reachedPrev.clear()
	for _, stop := range s.reachedCurrent.stops() {
		s.prevTimes[stop] = s.times[stop]
		s.prevBest[stop] = s.best[stop]
		s.reachedPrev.add(stop)
	}
	s.reachedCurrent.clear()
}

// bestTimePreviousRound is the time boarding at stop is based on.
func (s *stdWorkerState) bestTimePreviousRound(stop int) int { return s.prevTimes[stop] }

func (s *stdWorkerState) previousArrival(stop int) int32 { return s.prevBest[stop] }

// previousTransit returns the trip that brought the rider to stop in the previous round, following
// a transfer back to where it started.
func (s *stdWorkerState) previousTransit(stop int) (transitArrival, bool) {
	return s.arena.transitOf(s.prevBest[stop])
}

// bestTimes returns a copy of the best time per stop found in the current iteration.
func (s *stdWorkerState) bestTimes() []int {
	return append([]int(nil), s.times...)
}

func (s *stdWorkerState) accepted(idx int32) {
	s.stopArrivals++
	s.notifier.notify(&s.arena, s.iteration, s.arena.get(idx))
}
