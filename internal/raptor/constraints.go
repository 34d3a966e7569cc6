package raptor

import (
	"fmt"
	"sort"
)

// TransferConstraint overrides the default earliest-trip boarding for one transfer.
//
// When a constraint is both NotAllowed and Guaranteed, NotAllowed wins.
type TransferConstraint struct {
	NotAllowed bool
	Guaranteed bool
	// MinTransferTime in seconds replaces board and transfer slack, zero when unset.
	MinTransferTime int
	// NonBinding constraints are advisory. A non-binding NotAllowed does not block boarding.
	NonBinding bool
}

// IsRegular reports whether the constraint does not change boarding at all.
func (c TransferConstraint) IsRegular() bool {
	return !c.NotAllowed && !c.Guaranteed && c.MinTransferTime == 0
}

func (c TransferConstraint) String() string {
	switch {
	case c.NotAllowed && c.NonBinding:
		return "not-allowed (non-binding)"
	case c.NotAllowed:
		return "not-allowed"
	case c.Guaranteed:
		return "guaranteed"
	case c.MinTransferTime > 0:
		return fmt.Sprintf("min-transfer-time %ds", c.MinTransferTime)
	}
	return "regular"
}

// unconstrained is attached to boardings found by the constrained search that still follow
// regular boarding rules, e.g. when skipping trips excluded by a not-allowed constraint.
var unconstrained = &TransferConstraint{}

// constraintEntry is one constraint seen from the pattern being boarded. The source is the trip
// and stop the rider leaves, the target the trip boarded here.
type constraintEntry struct {
	sourceTripID string
	sourceStop   int
	target       *Trip
	constraint   *TransferConstraint
}

func (e *constraintEntry) specificity() int {
	n := 0
	if e.sourceTripID != "" {
		n++
	}
	if e.target != nil {
		n++
	}
	return n
}

func (e *constraintEntry) matches(source transitArrival) bool {
	if e.sourceStop != source.stop {
		return false
	}
	return e.sourceTripID == "" || e.sourceTripID == source.trip.ID
}

// constrainedBoardings holds the constraint entries of one pattern indexed by stop position.
type constrainedBoardings struct {
	byPos [][]constraintEntry
}

func (c *constrainedBoardings) search(p *Pattern, calc TransitCalculator) *ConstrainedBoardingSearch {
	if c == nil {
		return nil
	}
	return &ConstrainedBoardingSearch{boardings: c, pattern: p, calc: calc}
}

func (d *TransitData) indexConstraints(inputs []ConstraintInput) error {
	d.forwardTx = make([]*constrainedBoardings, len(d.patterns))
	d.reverseTx = make([]*constrainedBoardings, len(d.patterns))

	add := func(index []*constrainedBoardings, p *Pattern, pos int, e constraintEntry) {
		if index[p.Index] == nil {
			index[p.Index] = &constrainedBoardings{byPos: make([][]constraintEntry, len(p.stops))}
		}
		index[p.Index].byPos[pos] = append(index[p.Index].byPos[pos], e)
	}

	// targets returns every (pattern, position) a constraint endpoint can board at.
	targets := func(tripID string, stop int) ([]*Pattern, *Trip, error) {
		if tripID != "" {
			trip := d.tripsByID[tripID]
			if trip == nil {
				return nil, nil, fmt.Errorf("%w: constraint references unknown trip %q", ErrInvalidTransitData, tripID)
			}
			return []*Pattern{trip.pattern}, trip, nil
		}
		patterns := make([]*Pattern, 0, len(d.patternsByStop[stop]))
		for _, pi := range d.patternsByStop[stop] {
			patterns = append(patterns, d.patterns[pi])
		}
		return patterns, nil, nil
	}

	for i := range inputs {
		in := inputs[i]
		if !d.validStop(in.FromStop) || !d.validStop(in.ToStop) {
			return fmt.Errorf("%w: constraint %d->%d references unknown stop", ErrInvalidTransitData, in.FromStop, in.ToStop)
		}
		if in.Constraint.MinTransferTime < 0 {
			return fmt.Errorf("%w: constraint %d->%d has negative min transfer time", ErrInvalidTransitData, in.FromStop, in.ToStop)
		}
		if in.Constraint.IsRegular() {
			continue
		}
		c := in.Constraint

		// forward: board the to-trip at the to-stop coming from the from-trip
		toPatterns, toTrip, err := targets(in.ToTripID, in.ToStop)
		if err != nil {
			return err
		}
		for _, p := range toPatterns {
			for pos, s := range p.stops {
				if s == in.ToStop {
					add(d.forwardTx, p, pos, constraintEntry{sourceTripID: in.FromTripID, sourceStop: in.FromStop, target: toTrip, constraint: &c})
				}
			}
		}

		// reverse: board the from-trip at the from-stop coming from the to-trip
		fromPatterns, fromTrip, err := targets(in.FromTripID, in.FromStop)
		if err != nil {
			return err
		}
		for _, p := range fromPatterns {
			for pos, s := range p.stops {
				if s == in.FromStop {
					add(d.reverseTx, p, pos, constraintEntry{sourceTripID: in.ToTripID, sourceStop: in.ToStop, target: fromTrip, constraint: &c})
				}
			}
		}
	}

	// most specific first, not-allowed first among equals
	for _, index := range [][]*constrainedBoardings{d.forwardTx, d.reverseTx} {
		for _, cb := range index {
			if cb == nil {
				continue
			}
			for _, entries := range cb.byPos {
				sort.SliceStable(entries, func(i, j int) bool {
					si, sj := entries[i].specificity(), entries[j].specificity()
					if si != sj {
						return si > sj
					}
					return entries[i].constraint.NotAllowed && !entries[j].constraint.NotAllowed
				})
			}
		}
	}
	return nil
}

// BoardingEvent is the outcome of a constrained boarding search.
type BoardingEvent struct {
	TripIndex  int
	Trip       *Trip
	Time       int
	Constraint *TransferConstraint
}

var emptyBoarding = BoardingEvent{TripIndex: UnboundedTripIndex}

// Empty reports that no constraint applies and regular boarding rules should be used.
func (e BoardingEvent) Empty() bool { return e.Constraint == nil }

// NotAllowed reports that the transfer is forbidden and nothing should be boarded.
func (e BoardingEvent) NotAllowed() bool {
	return e.Constraint != nil && e.Constraint.NotAllowed
}

// ConstrainedBoardingSearch resolves transfer constraints when boarding one pattern.
type ConstrainedBoardingSearch struct {
	boardings *constrainedBoardings
	pattern   *Pattern
	calc      TransitCalculator
}

// TransferExistsAt reports whether any constraint targets the given stop position.
func (s *ConstrainedBoardingSearch) TransferExistsAt(stopPos int) bool {
	return s != nil && len(s.boardings.byPos[stopPos]) > 0
}

// Find resolves the constraints at stopPos for a rider coming from source. earliestBoardTime is
// the slack adjusted time regular boarding would use.
func (s *ConstrainedBoardingSearch) Find(stopPos int, source transitArrival, earliestBoardTime int) BoardingEvent {
	var forbidden map[*Trip]*TransferConstraint
	var firstForbid *TransferConstraint
	calc := s.calc

	for i := range s.boardings.byPos[stopPos] {
		e := &s.boardings.byPos[stopPos][i]
		if !e.matches(source) {
			continue
		}
		c := e.constraint

		if c.NotAllowed {
			if e.target == nil {
				return BoardingEvent{TripIndex: UnboundedTripIndex, Constraint: c}
			}
			if c.NonBinding {
				continue
			}
			if forbidden == nil {
				forbidden = make(map[*Trip]*TransferConstraint)
				firstForbid = c
			}
			forbidden[e.target] = c
			continue
		}

		earliest := source.time
		if !c.Guaranteed {
			earliest = calc.PlusDuration(source.time, c.MinTransferTime)
		}

		if e.target != nil {
			if _, skip := forbidden[e.target]; skip || e.target == source.trip {
				continue
			}
			t := calc.TripBoardTime(e.target, stopPos)
			if calc.IsBefore(t, earliest) {
				if !c.Guaranteed {
					continue
				}
				// the connecting trip waits for the rider. Searching backwards the
				// feeder keeps its schedule and the path shows the hold.
				if calc.Direction() == Forward {
					t = earliest
				}
			}
			return BoardingEvent{TripIndex: e.target.sortIndex, Trip: e.target, Time: t, Constraint: c}
		}

		if ev, ok := s.firstTrip(stopPos, earliest, source.trip, forbidden); ok {
			ev.Constraint = c
			return ev
		}
	}

	if forbidden == nil {
		return emptyBoarding
	}
	if ev, ok := s.firstTrip(stopPos, earliestBoardTime, source.trip, forbidden); ok {
		ev.Constraint = unconstrained
		return ev
	}
	return BoardingEvent{TripIndex: UnboundedTripIndex, Constraint: firstForbid}
}

// firstTrip scans the timetable for the first trip catchable at bound, skipping excluded trips.
func (s *ConstrainedBoardingSearch) firstTrip(stopPos, bound int, source *Trip, forbidden map[*Trip]*TransferConstraint) (BoardingEvent, bool) {
	ts := s.calc.newTripSearch(s.pattern)
	i := ts.Search(bound, stopPos, UnboundedTripIndex)
	step := 1
	if s.calc.Direction() == Reverse {
		step = -1
	}
	for ; i >= 0 && i < len(s.pattern.trips); i += step {
		trip := s.pattern.trips[i]
		if trip == source {
			continue
		}
		if _, skip := forbidden[trip]; skip {
			continue
		}
		return BoardingEvent{TripIndex: i, Trip: trip, Time: s.calc.TripBoardTime(trip, stopPos)}, true
	}
	return BoardingEvent{}, false
}
