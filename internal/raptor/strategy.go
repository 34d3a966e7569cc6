package raptor

// RoutingStrategy makes the boarding and alighting decisions while a pattern is scanned. One
// variant exists per Profile; the worker drives it the same way for both.
type RoutingStrategy interface {
	SetAccessToStop(legIndex int, leg AccessEgress)
	// PrepareForTransitWith starts the scan of a new pattern. The rider is on no trip.
	PrepareForTransitWith(p *Pattern, search *tripSearch)
	Alight(stop, stopPos, alightSlack int)
	BoardWithRegularTransfer(stop, stopPos, boardSlack int)
	BoardWithConstrainedTransfer(stop, stopPos, boardSlack int, tx *ConstrainedBoardingSearch)
}

// tripScan is the trip a rider is on while one pattern is scanned.
type tripScan struct {
	tripIndex  int
	trip       *Trip
	boardStop  int
	boardPos   int
	boardTime  int
	boardRef   int32
	constraint *TransferConstraint
}

func (s *tripScan) reset() {
	*s = tripScan{tripIndex: UnboundedTripIndex, boardRef: noArrival}
}

func (s *tripScan) onTrip() bool { return s.tripIndex != UnboundedTripIndex }

// arrivalTimeStrategy optimizes arrival time only.
type arrivalTimeStrategy struct {
	calc    TransitCalculator
	state   *stdWorkerState
	pattern *Pattern
	search  *tripSearch
	scan    tripScan
}

func newArrivalTimeStrategy(calc TransitCalculator, state *stdWorkerState) *arrivalTimeStrategy {
	s := &arrivalTimeStrategy{calc: calc, state: state}
	s.scan.reset()
	return s
}

func (s *arrivalTimeStrategy) SetAccessToStop(legIndex int, leg AccessEgress) {
	s.state.setAccessToStop(legIndex, leg)
}

func (s *arrivalTimeStrategy) PrepareForTransitWith(p *Pattern, search *tripSearch) {
	s.pattern = p
	s.search = search
	s.scan.reset()
}

func (s *arrivalTimeStrategy) Alight(stop, stopPos, alightSlack int) {
	if !s.scan.onTrip() {
		return
	}
	t := s.calc.StopArrivalTime(s.scan.trip, stopPos, alightSlack)
	// a guaranteed transfer may hold the trip past its schedule
	if s.calc.IsBefore(t, s.scan.boardTime) {
		t = s.scan.boardTime
	}
	alightTime := s.calc.TripAlightTime(s.scan.trip, stopPos)
	if s.calc.IsBefore(alightTime, s.scan.boardTime) {
		alightTime = s.scan.boardTime
	}
	s.state.transitToStop(stopArrival{
		stop:       stop,
		time:       t,
		previous:   s.scan.boardRef,
		trip:       s.scan.trip,
		boardStop:  s.scan.boardStop,
		boardPos:   s.scan.boardPos,
		boardTime:  s.scan.boardTime,
		alightPos:  stopPos,
		alightTime: alightTime,
		constraint: s.scan.constraint,
	})
}

func (s *arrivalTimeStrategy) BoardWithRegularTransfer(stop, stopPos, boardSlack int) {
	prev := s.state.bestTimePreviousRound(stop)
	bound := s.calc.BoardSlackAdjustedTime(prev, boardSlack)
	i := s.search.Search(bound, stopPos, s.scan.tripIndex)
	if i == UnboundedTripIndex {
		return
	}
	trip := s.pattern.trips[i]
	s.board(stop, stopPos, i, trip, s.calc.TripBoardTime(trip, stopPos), nil)
}

func (s *arrivalTimeStrategy) BoardWithConstrainedTransfer(stop, stopPos, boardSlack int, tx *ConstrainedBoardingSearch) {
	source, ok := s.state.previousTransit(stop)
	if !ok {
		s.BoardWithRegularTransfer(stop, stopPos, boardSlack)
		return
	}
	bound := s.calc.BoardSlackAdjustedTime(s.state.bestTimePreviousRound(stop), boardSlack)
	ev := tx.Find(stopPos, source, bound)
	switch {
	case ev.Empty():
		s.BoardWithRegularTransfer(stop, stopPos, boardSlack)
	case ev.NotAllowed():
		if ev.Constraint.NonBinding {
			s.BoardWithRegularTransfer(stop, stopPos, boardSlack)
		}
	default:
		if s.search.better(ev.TripIndex, s.scan.tripIndex) {
			s.board(stop, stopPos, ev.TripIndex, ev.Trip, ev.Time, ev.Constraint)
		}
	}
}

func (s *arrivalTimeStrategy) board(stop, stopPos, tripIndex int, trip *Trip, boardTime int, c *TransferConstraint) {
	if c == unconstrained {
		c = nil
	}
	s.scan = tripScan{
		tripIndex:  tripIndex,
		trip:       trip,
		boardStop:  stop,
		boardPos:   stopPos,
		boardTime:  boardTime,
		boardRef:   s.state.previousArrival(stop),
		constraint: c,
	}
}
