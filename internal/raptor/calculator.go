package raptor

import (
	"iter"
	"math"
)

// Direction of a search. Forward searches depart after a time, reverse searches arrive before one.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// NotAvailable is returned by time functions when a leg can not be used at the requested time.
const NotAvailable = -1

// TransitCalculator hides the search direction from the round-based algorithm. Forward
// calculators add durations and prefer earlier times, reverse calculators subtract durations and
// prefer later times. Implementations carry no state.
type TransitCalculator interface {
	Direction() Direction

	PlusDuration(t, d int) int
	MinusDuration(t, d int) int
	// Duration returns the positive time spent going from a to b in search direction.
	Duration(a, b int) int
	// IsBefore reports whether a comes strictly before b in search direction.
	IsBefore(a, b int) bool
	UnreachedTime() int

	// StopArrivalTime is the time a rider is available at the stop after leaving the trip.
	StopArrivalTime(trip *Trip, stopPos, alightSlack int) int
	// BoardSlackAdjustedTime is the earliest trip time a rider available at t can catch.
	BoardSlackAdjustedTime(t, boardSlack int) int
	TripBoardTime(trip *Trip, stopPos int) int
	TripAlightTime(trip *Trip, stopPos int) int

	BoardingPossible(p *Pattern, stopPos int) bool
	AlightingPossible(p *Pattern, stopPos int) bool
	// PatternStops yields stop positions in scan order.
	PatternStops(n int) iter.Seq[int]

	// Iterations yields the departure (or arrival) times of a range search, the iteration
	// furthest from the search origin first.
	Iterations(req *Request) iter.Seq[int]

	Transfers(data *TransitData, stop int) []Transfer
	TransferTarget(t Transfer) int

	// TimeAfterLeg returns the time at the far end of an access or egress leg entered at t,
	// or NotAvailable when the leg is closed.
	TimeAfterLeg(leg AccessEgress, t int) int

	// SearchSlack maps real world slacks to search board and alight slacks.
	SearchSlack(s Slack, round int) (board, alight int)

	newTripSearch(p *Pattern) *tripSearch
	constrainedBoardings(data *TransitData, patternIndex int) *ConstrainedBoardingSearch
}

func newCalculator(d Direction) TransitCalculator {
	if d == Reverse {
		return reverseCalculator{}
	}
	return forwardCalculator{}
}

type forwardCalculator struct{}

func (forwardCalculator) Direction() Direction { return Forward }
func (forwardCalculator) PlusDuration(t, d int) int { return t + d }
func (forwardCalculator) MinusDuration(t, d int) int { return t - d }
func (forwardCalculator) Duration(a, b int) int { return b - a }
func (forwardCalculator) IsBefore(a, b int) bool { return a < b }
func (forwardCalculator) UnreachedTime() int { return math.MaxInt32 }
func (forwardCalculator) TripBoardTime(trip *Trip, pos int) int { return trip.Departure(pos) }
func (forwardCalculator) TripAlightTime(trip *Trip, pos int) int { return trip.Arrival(pos) }

func (forwardCalculator) StopArrivalTime(trip *Trip, pos, alightSlack int) int {
	return trip.Arrival(pos) + alightSlack
}

func (forwardCalculator) BoardSlackAdjustedTime(t, boardSlack int) int { return t + boardSlack }

func (forwardCalculator) BoardingPossible(p *Pattern, pos int) bool { return p.BoardingPossible(pos) }
func (forwardCalculator) AlightingPossible(p *Pattern, pos int) bool { return p.AlightingPossible(pos) }

func (forwardCalculator) PatternStops(n int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for pos := 0; pos < n; pos++ {
			if !yield(pos) {
				return
			}
		}
	}
}

func (forwardCalculator) Iterations(req *Request) iter.Seq[int] {
	return func(yield func(int) bool) {
		n := req.SearchWindow / req.IterationStep
		for i := n; i >= 0; i-- {
			if !yield(req.EarliestDepartureTime + i*req.IterationStep) {
				return
			}
		}
	}
}

func (forwardCalculator) Transfers(data *TransitData, stop int) []Transfer {
	return data.TransfersFrom(stop)
}

func (forwardCalculator) TransferTarget(t Transfer) int { return t.ToStop }

func (forwardCalculator) TimeAfterLeg(leg AccessEgress, t int) int {
	dep := leg.EarliestDepartureTime(t)
	if dep == NotAvailable {
		return NotAvailable
	}
	return dep + leg.Duration
}

func (forwardCalculator) SearchSlack(s Slack, round int) (int, int) {
	board := s.Board
	if round > 1 {
		board += s.Transfer
	}
	return board, s.Alight
}

func (forwardCalculator) newTripSearch(p *Pattern) *tripSearch {
	return &tripSearch{pattern: p, forward: true, last: UnboundedTripIndex}
}

func (forwardCalculator) constrainedBoardings(data *TransitData, patternIndex int) *ConstrainedBoardingSearch {
	return data.forwardTx[patternIndex].search(data.patterns[patternIndex], forwardCalculator{})
}

type reverseCalculator struct{}

func (reverseCalculator) Direction() Direction { return Reverse }
func (reverseCalculator) PlusDuration(t, d int) int { return t - d }
func (reverseCalculator) MinusDuration(t, d int) int { return t + d }
func (reverseCalculator) Duration(a, b int) int { return a - b }
func (reverseCalculator) IsBefore(a, b int) bool { return a > b }
func (reverseCalculator) UnreachedTime() int { return math.MinInt32 }
func (reverseCalculator) TripBoardTime(trip *Trip, pos int) int { return trip.Arrival(pos) }
func (reverseCalculator) TripAlightTime(trip *Trip, pos int) int { return trip.Departure(pos) }

func (reverseCalculator) StopArrivalTime(trip *Trip, pos, alightSlack int) int {
	return trip.Departure(pos) - alightSlack
}

func (reverseCalculator) BoardSlackAdjustedTime(t, boardSlack int) int { return t - boardSlack }

func (reverseCalculator) BoardingPossible(p *Pattern, pos int) bool { return p.AlightingPossible(pos) }
func (reverseCalculator) AlightingPossible(p *Pattern, pos int) bool { return p.BoardingPossible(pos) }

func (reverseCalculator) PatternStops(n int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for pos := n - 1; pos >= 0; pos-- {
			if !yield(pos) {
				return
			}
		}
	}
}

func (reverseCalculator) Iterations(req *Request) iter.Seq[int] {
	return func(yield func(int) bool) {
		n := req.SearchWindow / req.IterationStep
		for i := n; i >= 0; i-- {
			if !yield(req.LatestArrivalTime - i*req.IterationStep) {
				return
			}
		}
	}
}

func (reverseCalculator) Transfers(data *TransitData, stop int) []Transfer {
	return data.TransfersTo(stop)
}

func (reverseCalculator) TransferTarget(t Transfer) int { return t.FromStop }

func (reverseCalculator) TimeAfterLeg(leg AccessEgress, t int) int {
	arr := leg.LatestArrivalTime(t)
	if arr == NotAvailable {
		return NotAvailable
	}
	return arr - leg.Duration
}

// In a reverse search the rider "boards" where they really alight.
func (reverseCalculator) SearchSlack(s Slack, round int) (int, int) {
	board := s.Alight
	if round > 1 {
		board += s.Transfer
	}
	return board, s.Board
}

func (reverseCalculator) newTripSearch(p *Pattern) *tripSearch {
	return &tripSearch{pattern: p, forward: false, last: UnboundedTripIndex}
}

func (reverseCalculator) constrainedBoardings(data *TransitData, patternIndex int) *ConstrainedBoardingSearch {
	return data.reverseTx[patternIndex].search(data.patterns[patternIndex], reverseCalculator{})
}
