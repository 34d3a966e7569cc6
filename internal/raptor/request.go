package raptor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest is returned when a request breaks a precondition of the search.
	ErrInvalidRequest = errors.New("invalid routing request")
	// ErrAborted is returned when the search was cancelled before it completed. It wraps the
	// context error.
	ErrAborted = errors.New("routing search aborted")
)

const (
	DefaultIterationStep        = 60
	DefaultMaxDuration          = int(24 * time.Hour / time.Second)
	DefaultMaxNumberOfTransfers = 12
)

// Profile selects the criteria a search optimizes.
type Profile int

const (
	// StandardProfile optimizes arrival time, departure time and number of transfers.
	StandardProfile Profile = iota
	// MultiCriteriaProfile adds generalized cost to the standard criteria.
	MultiCriteriaProfile
)

func (p Profile) String() string {
	if p == MultiCriteriaProfile {
		return "multi-criteria"
	}
	return "standard"
}

// AccessEgress is a street leg between the origin or destination and a stop. Opening and Closing
// restrict the seconds of day the leg may start; both zero means always open.
type AccessEgress struct {
	Stop     int
	Duration int
	Opening  int
	Closing  int
}

func (a AccessEgress) HasOpeningHours() bool {
	return a.Opening != 0 || a.Closing != 0
}

// EarliestDepartureTime returns the earliest time not before t the leg can start, or
// NotAvailable when the leg has closed.
func (a AccessEgress) EarliestDepartureTime(t int) int {
	if !a.HasOpeningHours() {
		return t
	}
	if t < a.Opening {
		return a.Opening
	}
	if t > a.Closing {
		return NotAvailable
	}
	return t
}

// LatestArrivalTime returns the latest time not after t the leg can end, or NotAvailable when
// the leg has not opened yet.
func (a AccessEgress) LatestArrivalTime(t int) int {
	if !a.HasOpeningHours() {
		return t
	}
	dep := t - a.Duration
	if dep < a.Opening {
		return NotAvailable
	}
	if dep > a.Closing {
		return a.Closing + a.Duration
	}
	return t
}

// Slack in seconds. Transfer slack is added to board slack on every boarding after the first.
type Slack struct {
	Board    int
	Alight   int
	Transfer int
}

// CostParams configure the generalized cost of the multi-criteria profile. Costs are in seconds
// and reluctances are multipliers on time spent.
type CostParams struct {
	BoardCost         int
	TransferCost      int
	WalkReluctance    float64
	WaitReluctance    float64
	TransitReluctance float64
}

// DefaultCostParams are used when a multi-criteria request leaves all reluctances at zero.
var DefaultCostParams = CostParams{
	BoardCost:         60,
	TransferCost:      120,
	WalkReluctance:    2.0,
	WaitReluctance:    1.0,
	TransitReluctance: 1.0,
}

// StopArrivalEvent describes an accepted stop arrival to a debug listener.
type StopArrivalEvent struct {
	Iteration int
	Round     int
	Stop      int
	Time      int
	Kind      string
	// BoardingRound is the round of the arrival boarding was based on, -1 for non-transit arrivals.
	BoardingRound int
	TripID        string
}

// DebugOptions hook into a running search.
type DebugOptions struct {
	StopArrivalListener func(StopArrivalEvent)
}

// Request is one routing search. Times are seconds after midnight of the service day. Access and
// Egress keep their real world meaning in both directions: access legs leave the origin.
type Request struct {
	Profile   Profile
	Direction Direction

	// EarliestDepartureTime starts the window of a forward search.
	EarliestDepartureTime int
	// LatestArrivalTime ends the window of a reverse search.
	LatestArrivalTime int
	SearchWindow      int
	IterationStep     int

	MaxNumberOfTransfers int
	// MaxDuration cuts off arrivals this long after the iteration departure time.
	MaxDuration int

	Access []AccessEgress
	Egress []AccessEgress

	Slack Slack
	Cost  CostParams

	// Heuristics computed for this request prune arrivals that can not reach the destination.
	Heuristics *Heuristics

	Debug DebugOptions
}

// normalized validates the request against the transit data and returns a copy with defaults.
func (r Request) normalized(data *TransitData) (Request, error) {
	if r.Profile != StandardProfile && r.Profile != MultiCriteriaProfile {
		return r, fmt.Errorf("%w: unknown profile %d", ErrInvalidRequest, r.Profile)
	}
	if r.Direction != Forward && r.Direction != Reverse {
		return r, fmt.Errorf("%w: unknown direction %d", ErrInvalidRequest, r.Direction)
	}
	if r.Direction == Forward && r.EarliestDepartureTime < 0 {
		return r, fmt.Errorf("%w: earliest departure time must not be negative", ErrInvalidRequest)
	}
	if r.Direction == Reverse && r.LatestArrivalTime < 0 {
		return r, fmt.Errorf("%w: latest arrival time must not be negative", ErrInvalidRequest)
	}
	if r.SearchWindow < 0 {
		return r, fmt.Errorf("%w: search window must not be negative", ErrInvalidRequest)
	}
	if r.IterationStep < 0 || r.MaxDuration < 0 || r.MaxNumberOfTransfers < 0 {
		return r, fmt.Errorf("%w: iteration step, max duration and max transfers must not be negative", ErrInvalidRequest)
	}
	if r.Slack.Board < 0 || r.Slack.Alight < 0 || r.Slack.Transfer < 0 {
		return r, fmt.Errorf("%w: slack must not be negative", ErrInvalidRequest)
	}
	if len(r.Access) == 0 {
		return r, fmt.Errorf("%w: no access paths", ErrInvalidRequest)
	}
	if len(r.Egress) == 0 {
		return r, fmt.Errorf("%w: no egress paths", ErrInvalidRequest)
	}
	for _, legs := range [][]AccessEgress{r.Access, r.Egress} {
		for _, a := range legs {
			if !data.validStop(a.Stop) {
				return r, fmt.Errorf("%w: access/egress stop %d out of range", ErrInvalidRequest, a.Stop)
			}
			if a.Duration < 0 {
				return r, fmt.Errorf("%w: access/egress to stop %d has negative duration", ErrInvalidRequest, a.Stop)
			}
			if a.HasOpeningHours() && a.Opening > a.Closing {
				return r, fmt.Errorf("%w: access/egress to stop %d opens after it closes", ErrInvalidRequest, a.Stop)
			}
		}
	}
	if r.Heuristics != nil && (r.Heuristics.direction != r.Direction || len(r.Heuristics.times) != data.NumberOfStops()) {
		return r, fmt.Errorf("%w: heuristics do not match the request", ErrInvalidRequest)
	}

	if r.IterationStep == 0 {
		r.IterationStep = DefaultIterationStep
	}
	if r.MaxDuration == 0 {
		r.MaxDuration = DefaultMaxDuration
	}
	if r.Profile == MultiCriteriaProfile && r.Cost.WalkReluctance == 0 && r.Cost.WaitReluctance == 0 && r.Cost.TransitReluctance == 0 {
		board, transfer := r.Cost.BoardCost, r.Cost.TransferCost
		r.Cost = DefaultCostParams
		if board != 0 || transfer != 0 {
			r.Cost.BoardCost, r.Cost.TransferCost = board, transfer
		}
	}
	return r, nil
}

// searchAccess returns the legs the search starts from, which are the egress legs in reverse.
func (r *Request) searchAccess() []AccessEgress {
	if r.Direction == Reverse {
		return r.Egress
	}
	return r.Access
}

func (r *Request) searchEgress() []AccessEgress {
	if r.Direction == Reverse {
		return r.Access
	}
	return r.Egress
}

func (r *Request) maxRounds() int { return r.MaxNumberOfTransfers + 1 }

// costFactors are the cost parameters converted to integer centi-seconds.
type costFactors struct {
	board, transfer     int
	walk, wait, transit int
}

func newCostFactors(c CostParams) costFactors {
	return costFactors{
		board:    c.BoardCost * 100,
		transfer: c.TransferCost * 100,
		walk:     int(c.WalkReluctance * 100),
		wait:     int(c.WaitReluctance * 100),
		transit:  int(c.TransitReluctance * 100),
	}
}

func (f costFactors) boardCost(round int) int {
	if round > 1 {
		return f.board + f.transfer
	}
	return f.board
}
