package raptor

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidTransitData is returned by the builder when the timetable input breaks an invariant
var ErrInvalidTransitData = errors.New("invalid transit data")

// Trip is one scheduled run of a pattern. Times are seconds after midnight of the service day.
type Trip struct {
	ID         string
	sortIndex  int
	pattern    *Pattern
	arrivals   []int
	departures []int
}

// Pattern returns the pattern the trip belongs to.
func (t *Trip) Pattern() *Pattern { return t.pattern }

// SortIndex is the position of the trip in its pattern's timetable.
func (t *Trip) SortIndex() int { return t.sortIndex }

// Arrival returns the scheduled arrival at the given stop position.
func (t *Trip) Arrival(stopPos int) int { return t.arrivals[stopPos] }

// Departure returns the scheduled departure at the given stop position.
func (t *Trip) Departure(stopPos int) int { return t.departures[stopPos] }

// Pattern is an ordered stop sequence together with the timetable of trips serving it.
// Trips are sorted by departure (and arrival) at every stop position.
type Pattern struct {
	Index   int
	RouteID string
	Name    string

	stops       []int
	noBoarding  []bool
	noAlighting []bool
	trips       []*Trip
}

func (p *Pattern) NumberOfStops() int { return len(p.stops) }

// StopIndex returns the stop visited at the given position.
func (p *Pattern) StopIndex(stopPos int) int { return p.stops[stopPos] }

func (p *Pattern) NumberOfTrips() int { return len(p.trips) }

func (p *Pattern) Trip(index int) *Trip { return p.trips[index] }

func (p *Pattern) BoardingPossible(stopPos int) bool { return !p.noBoarding[stopPos] }

func (p *Pattern) AlightingPossible(stopPos int) bool { return !p.noAlighting[stopPos] }

// Transfer is a footpath between two stops.
type Transfer struct {
	FromStop int
	ToStop   int
	Duration int
}

// TransitData is the immutable routing view of one timetable snapshot. It is shared read-only by
// all concurrent searches.
type TransitData struct {
	numberOfStops  int
	patterns       []*Pattern
	patternsByStop [][]int
	transfersFrom  [][]Transfer
	transfersTo    [][]Transfer
	tripsByID      map[string]*Trip
	forwardTx      []*constrainedBoardings
	reverseTx      []*constrainedBoardings
}

func (d *TransitData) NumberOfStops() int { return d.numberOfStops }

func (d *TransitData) NumberOfPatterns() int { return len(d.patterns) }

func (d *TransitData) Pattern(index int) *Pattern { return d.patterns[index] }

// PatternsForStop returns the indices of all patterns visiting the stop.
func (d *TransitData) PatternsForStop(stop int) []int { return d.patternsByStop[stop] }

func (d *TransitData) TransfersFrom(stop int) []Transfer { return d.transfersFrom[stop] }

func (d *TransitData) TransfersTo(stop int) []Transfer { return d.transfersTo[stop] }

// TripByID looks up a trip by its id. Trips split off into sibling patterns keep their id.
func (d *TransitData) TripByID(id string) *Trip { return d.tripsByID[id] }

// TripInput is one trip handed to the builder.
type TripInput struct {
	ID         string
	Arrivals   []int
	Departures []int
}

// PatternInput is one stop pattern handed to the builder.
type PatternInput struct {
	RouteID     string
	Name        string
	Stops       []int
	NoBoarding  []int // stop positions where boarding is not possible
	NoAlighting []int // stop positions where alighting is not possible
	Trips       []TripInput
}

// ConstraintInput attaches a constraint to a transfer. Empty trip ids match any trip.
type ConstraintInput struct {
	FromTripID string
	FromStop   int
	ToTripID   string
	ToStop     int
	Constraint TransferConstraint
}

// TransitDataBuilder collects patterns, transfers and constraints and validates them in Build.
type TransitDataBuilder struct {
	numberOfStops int
	patterns      []PatternInput
	transfers     []Transfer
	constraints   []ConstraintInput
}

// NewTransitDataBuilder creates a builder for a network with the given number of stops.
func NewTransitDataBuilder(numberOfStops int) *TransitDataBuilder {
	return &TransitDataBuilder{numberOfStops: numberOfStops}
}

func (b *TransitDataBuilder) AddPattern(p PatternInput) *TransitDataBuilder {
	b.patterns = append(b.patterns, p)
	return b
}

func (b *TransitDataBuilder) AddTransfer(fromStop, toStop, duration int) *TransitDataBuilder {
	b.transfers = append(b.transfers, Transfer{FromStop: fromStop, ToStop: toStop, Duration: duration})
	return b
}

func (b *TransitDataBuilder) AddConstraint(c ConstraintInput) *TransitDataBuilder {
	b.constraints = append(b.constraints, c)
	return b
}

// Build validates the input and produces the immutable transit data. Trips that would overtake
// another trip of the same pattern are moved to a sibling pattern so every timetable stays sorted.
func (b *TransitDataBuilder) Build() (*TransitData, error) {
	if b.numberOfStops <= 0 {
		return nil, fmt.Errorf("%w: number of stops must be positive", ErrInvalidTransitData)
	}

	data := &TransitData{
		numberOfStops:  b.numberOfStops,
		patternsByStop: make([][]int, b.numberOfStops),
		transfersFrom:  make([][]Transfer, b.numberOfStops),
		transfersTo:    make([][]Transfer, b.numberOfStops),
		tripsByID:      make(map[string]*Trip),
	}

	for i := range b.patterns {
		if err := data.addPattern(&b.patterns[i]); err != nil {
			return nil, err
		}
	}

	for _, tr := range b.transfers {
		if !data.validStop(tr.FromStop) || !data.validStop(tr.ToStop) {
			return nil, fmt.Errorf("%w: transfer %d->%d references unknown stop", ErrInvalidTransitData, tr.FromStop, tr.ToStop)
		}
		if tr.Duration < 0 {
			return nil, fmt.Errorf("%w: transfer %d->%d has negative duration", ErrInvalidTransitData, tr.FromStop, tr.ToStop)
		}
		data.transfersFrom[tr.FromStop] = append(data.transfersFrom[tr.FromStop], tr)
		data.transfersTo[tr.ToStop] = append(data.transfersTo[tr.ToStop], tr)
	}
	for s := 0; s < data.numberOfStops; s++ {
		sortTransfers(data.transfersFrom[s])
		sortTransfers(data.transfersTo[s])
	}

	if err := data.indexConstraints(b.constraints); err != nil {
		return nil, err
	}

	return data, nil
}

func (d *TransitData) validStop(stop int) bool {
	return stop >= 0 && stop < d.numberOfStops
}

func (d *TransitData) addPattern(in *PatternInput) error {
	n := len(in.Stops)
	if n < 2 {
		return fmt.Errorf("%w: pattern %q needs at least two stops", ErrInvalidTransitData, in.RouteID)
	}
	for _, s := range in.Stops {
		if !d.validStop(s) {
			return fmt.Errorf("%w: pattern %q references unknown stop %d", ErrInvalidTransitData, in.RouteID, s)
		}
	}

	trips := make([]*Trip, 0, len(in.Trips))
	for _, ti := range in.Trips {
		if len(ti.Arrivals) != n || len(ti.Departures) != n {
			return fmt.Errorf("%w: trip %q has %d/%d times for %d stops", ErrInvalidTransitData, ti.ID, len(ti.Arrivals), len(ti.Departures), n)
		}
		for pos := 0; pos < n; pos++ {
			if ti.Arrivals[pos] > ti.Departures[pos] {
				return fmt.Errorf("%w: trip %q departs before it arrives at position %d", ErrInvalidTransitData, ti.ID, pos)
			}
			if pos > 0 && ti.Departures[pos-1] > ti.Arrivals[pos] {
				return fmt.Errorf("%w: trip %q travels back in time at position %d", ErrInvalidTransitData, ti.ID, pos)
			}
		}
		if _, exists := d.tripsByID[ti.ID]; exists {
			return fmt.Errorf("%w: duplicate trip id %q", ErrInvalidTransitData, ti.ID)
		}
		trip := &Trip{
			ID:         ti.ID,
			arrivals:   append([]int(nil), ti.Arrivals...),
			departures: append([]int(nil), ti.Departures...),
		}
		d.tripsByID[ti.ID] = trip
		trips = append(trips, trip)
	}

	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].departures[0] != trips[j].departures[0] {
			return trips[i].departures[0] < trips[j].departures[0]
		}
		return trips[i].arrivals[n-1] < trips[j].arrivals[n-1]
	})

	// Greedy split: each trip goes into the first timetable it does not overtake.
	var timetables [][]*Trip
	for _, trip := range trips {
		placed := false
		for i, tt := range timetables {
			if !overtakes(tt[len(tt)-1], trip) {
				timetables[i] = append(tt, trip)
				placed = true
				break
			}
		}
		if !placed {
			timetables = append(timetables, []*Trip{trip})
		}
	}
	if len(timetables) == 0 {
		timetables = append(timetables, nil)
	}

	noBoarding := make([]bool, n)
	noAlighting := make([]bool, n)
	for _, pos := range in.NoBoarding {
		if pos < 0 || pos >= n {
			return fmt.Errorf("%w: pattern %q has no-boarding position %d out of range", ErrInvalidTransitData, in.RouteID, pos)
		}
		noBoarding[pos] = true
	}
	for _, pos := range in.NoAlighting {
		if pos < 0 || pos >= n {
			return fmt.Errorf("%w: pattern %q has no-alighting position %d out of range", ErrInvalidTransitData, in.RouteID, pos)
		}
		noAlighting[pos] = true
	}

	for _, tt := range timetables {
		p := &Pattern{
			Index:       len(d.patterns),
			RouteID:     in.RouteID,
			Name:        in.Name,
			stops:       append([]int(nil), in.Stops...),
			noBoarding:  noBoarding,
			noAlighting: noAlighting,
			trips:       tt,
		}
		for i, trip := range tt {
			trip.pattern = p
			trip.sortIndex = i
		}
		d.patterns = append(d.patterns, p)

		seen := make(map[int]bool, n)
		for _, s := range p.stops {
			if !seen[s] {
				seen[s] = true
				d.patternsByStop[s] = append(d.patternsByStop[s], p.Index)
			}
		}
	}
	return nil
}

// overtakes reports whether next would leave or arrive before prev at any stop position.
func overtakes(prev, next *Trip) bool {
	for pos := range prev.departures {
		if next.departures[pos] < prev.departures[pos] || next.arrivals[pos] < prev.arrivals[pos] {
			return true
		}
	}
	return false
}

func sortTransfers(transfers []Transfer) {
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].FromStop != transfers[j].FromStop {
			return transfers[i].FromStop < transfers[j].FromStop
		}
		if transfers[i].ToStop != transfers[j].ToStop {
			return transfers[i].ToStop < transfers[j].ToStop
		}
		return transfers[i].Duration < transfers[j].Duration
	})
}
