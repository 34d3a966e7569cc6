package raptor

// patternRide is one way of riding the pattern being scanned. relCost is the boarding cost moved
// to time zero so rides on different trips compare at any stop.
type patternRide struct {
	tripIndex  int
	trip       *Trip
	boardStop  int
	boardPos   int
	boardTime  int
	boardRef   int32
	boardCost  int
	relCost    int
	constraint *TransferConstraint
}

// mcStrategy boards every non-dominated arrival of the previous round and keeps a Pareto set of
// rides over trip and cost while the pattern is scanned.
type mcStrategy struct {
	calc    TransitCalculator
	state   *mcWorkerState
	pattern *Pattern
	search  *tripSearch
	rides   *paretoSet[patternRide]
}

func newMcStrategy(calc TransitCalculator, state *mcWorkerState) *mcStrategy {
	s := &mcStrategy{calc: calc, state: state}
	s.rides = newParetoSet(func(a, b patternRide) bool {
		return !s.search.better(b.tripIndex, a.tripIndex) && a.relCost <= b.relCost
	})
	return s
}

func (s *mcStrategy) SetAccessToStop(legIndex int, leg AccessEgress) {
	s.state.setAccessToStop(legIndex, leg)
}

func (s *mcStrategy) PrepareForTransitWith(p *Pattern, search *tripSearch) {
	s.pattern = p
	s.search = search
	s.rides.reset()
}

func (s *mcStrategy) Alight(stop, stopPos, alightSlack int) {
	transit := s.state.costs.transit
	for _, ride := range s.rides.all() {
		t := s.calc.StopArrivalTime(ride.trip, stopPos, alightSlack)
		if s.calc.IsBefore(t, ride.boardTime) {
			t = ride.boardTime
		}
		alightTime := s.calc.TripAlightTime(ride.trip, stopPos)
		if s.calc.IsBefore(alightTime, ride.boardTime) {
			alightTime = ride.boardTime
		}
		s.state.transitToStop(stopArrival{
			stop:       stop,
			time:       t,
			previous:   ride.boardRef,
			cost:       ride.boardCost + transit*s.calc.Duration(ride.boardTime, alightTime),
			trip:       ride.trip,
			boardStop:  ride.boardStop,
			boardPos:   ride.boardPos,
			boardTime:  ride.boardTime,
			alightPos:  stopPos,
			alightTime: alightTime,
			constraint: ride.constraint,
		})
	}
}

func (s *mcStrategy) BoardWithRegularTransfer(stop, stopPos, boardSlack int) {
	for _, prev := range s.state.previousRoundArrivals(stop) {
		s.boardRegular(stop, stopPos, boardSlack, prev)
	}
}

func (s *mcStrategy) boardRegular(stop, stopPos, boardSlack int, prev int32) {
	bound := s.calc.BoardSlackAdjustedTime(s.state.arena.get(prev).time, boardSlack)
	i := s.search.Search(bound, stopPos, UnboundedTripIndex)
	if i == UnboundedTripIndex {
		return
	}
	trip := s.pattern.trips[i]
	s.board(stop, stopPos, prev, i, trip, s.calc.TripBoardTime(trip, stopPos), nil)
}

func (s *mcStrategy) BoardWithConstrainedTransfer(stop, stopPos, boardSlack int, tx *ConstrainedBoardingSearch) {
	for _, prev := range s.state.previousRoundArrivals(stop) {
		source, ok := s.state.arena.transitOf(prev)
		if !ok {
			s.boardRegular(stop, stopPos, boardSlack, prev)
			continue
		}
		bound := s.calc.BoardSlackAdjustedTime(s.state.arena.get(prev).time, boardSlack)
		ev := tx.Find(stopPos, source, bound)
		switch {
		case ev.Empty():
			s.boardRegular(stop, stopPos, boardSlack, prev)
		case ev.NotAllowed():
			if ev.Constraint.NonBinding {
				s.boardRegular(stop, stopPos, boardSlack, prev)
			}
		default:
			s.board(stop, stopPos, prev, ev.TripIndex, ev.Trip, ev.Time, ev.Constraint)
		}
	}
}

func (s *mcStrategy) board(stop, stopPos int, prev int32, tripIndex int, trip *Trip, boardTime int, c *TransferConstraint) {
	if c == unconstrained {
		c = nil
	}
	rec := s.state.arena.get(prev)
	costs := s.state.costs
	wait := max(0, s.calc.Duration(rec.time, boardTime))
	boardCost := rec.cost + costs.boardCost(s.state.round()) + costs.wait*wait
	s.rides.add(patternRide{
		tripIndex:  tripIndex,
		trip:       trip,
		boardStop:  stop,
		boardPos:   stopPos,
		boardTime:  boardTime,
		boardRef:   prev,
		boardCost:  boardCost,
		relCost:    boardCost - costs.transit*s.calc.Duration(0, boardTime),
		constraint: c,
	})
}
