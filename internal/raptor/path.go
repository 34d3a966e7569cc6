package raptor

import (
	"fmt"
	"strings"
)

// LegKind classifies the legs of a path.
type LegKind int

const (
	AccessLeg LegKind = iota
	TransitLeg
	TransferLeg
	EgressLeg
)

func (k LegKind) String() string {
	switch k {
	case AccessLeg:
		return "access"
	case TransitLeg:
		return "transit"
	case TransferLeg:
		return "transfer"
	case EgressLeg:
		return "egress"
	}
	return fmt.Sprintf("LegKind(%d)", int(k))
}

// NoStop marks the origin or destination end of an access or egress leg.
const NoStop = -1

// Leg is one part of a path in real world order and time.
type Leg struct {
	Kind      LegKind
	FromStop  int
	ToStop    int
	StartTime int
	EndTime   int

	// Trip and stop positions are set on transit legs.
	Trip       *Trip
	FromPos    int
	ToPos      int
	Constraint *TransferConstraint

	// LegIndex is the index into Request.Access or Request.Egress for access and egress legs.
	LegIndex int
}

func (l Leg) Duration() int { return l.EndTime - l.StartTime }

// Path is one journey of the result set.
type Path struct {
	StartTime         int
	EndTime           int
	NumberOfTransfers int
	// GeneralizedCost in centi-seconds, only set by the multi-criteria profile.
	GeneralizedCost int
	Legs            []Leg
}

func (p *Path) Duration() int { return p.EndTime - p.StartTime }

// TransitLegs returns the transit legs in travel order.
func (p *Path) TransitLegs() []Leg {
	var legs []Leg
	for _, l := range p.Legs {
		if l.Kind == TransitLeg {
			legs = append(legs, l)
		}
	}
	return legs
}

func (p *Path) String() string {
	var b strings.Builder
	for i, l := range p.Legs {
		if i > 0 {
			b.WriteString(" ~ ")
		}
		switch l.Kind {
		case AccessLeg, EgressLeg, TransferLeg:
			fmt.Fprintf(&b, "Walk %s", FormatDuration(l.Duration()))
		case TransitLeg:
			fmt.Fprintf(&b, "%s %s %s", l.Trip.ID, FormatTime(l.StartTime), FormatTime(l.EndTime))
		}
		if l.ToStop != NoStop {
			fmt.Fprintf(&b, " ~ %d", l.ToStop)
		}
	}
	fmt.Fprintf(&b, " [%s %s %s %dtx", FormatTime(p.StartTime), FormatTime(p.EndTime), FormatDuration(p.Duration()), p.NumberOfTransfers)
	if p.GeneralizedCost != 0 {
		fmt.Fprintf(&b, " $%d", p.GeneralizedCost/100)
	}
	b.WriteString("]")
	return b.String()
}

// FormatTime formats seconds after midnight as HH:MM:SS.
func FormatTime(sec int) string {
	sign := ""
	if sec < 0 {
		sign, sec = "-", -sec
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, sec/3600, sec/60%60, sec%60)
}

func FormatDuration(sec int) string {
	if sec%60 == 0 {
		return fmt.Sprintf("%dm", sec/60)
	}
	return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
}

// pathBuilder rebuilds paths from the arena of one iteration.
type pathBuilder struct {
	calc  TransitCalculator
	req   *Request
	costs costFactors
	mc    bool
}

func (b *pathBuilder) chain(a *arena, idx int32) []*stopArrival {
	var recs []*stopArrival
	for idx != noArrival {
		rec := a.get(idx)
		recs = append(recs, rec)
		idx = rec.previous
	}
	return recs
}

// build creates the path ending with the given search egress leg after the transit arrival idx.
func (b *pathBuilder) build(a *arena, egressIndex int, egress AccessEgress, idx int32) *Path {
	var p *Path
	if b.calc.Direction() == Forward {
		p = b.buildForward(a, egressIndex, egress, idx)
	} else {
		p = b.buildReverse(a, egressIndex, egress, idx)
	}
	p.StartTime = p.Legs[0].StartTime
	p.EndTime = p.Legs[len(p.Legs)-1].EndTime
	p.NumberOfTransfers = len(p.TransitLegs()) - 1
	if b.mc {
		p.GeneralizedCost = a.get(idx).cost + b.costs.walk*egress.Duration
	}
	return p
}

func (b *pathBuilder) buildForward(a *arena, egressIndex int, egress AccessEgress, idx int32) *Path {
	recs := b.chain(a, idx)
	// arena chains run from the last arrival back to the access
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}

	p := &Path{Legs: make([]Leg, 0, len(recs)+1)}
	access := recs[0]
	leg := b.req.Access[access.legIndex]
	end := recs[1].boardTime - b.req.Slack.Board
	start := end - leg.Duration
	if leg.HasOpeningHours() && leg.EarliestDepartureTime(start) != start {
		start, end = access.time-leg.Duration, access.time
	}
	p.Legs = append(p.Legs, Leg{Kind: AccessLeg, FromStop: NoStop, ToStop: access.stop, StartTime: start, EndTime: end, LegIndex: access.legIndex})

	for i := 1; i < len(recs); i++ {
		rec := recs[i]
		switch rec.kind {
		case kindTransit:
			p.Legs = append(p.Legs, Leg{
				Kind:       TransitLeg,
				FromStop:   rec.boardStop,
				ToStop:     rec.stop,
				StartTime:  rec.boardTime,
				EndTime:    rec.alightTime,
				Trip:       rec.trip,
				FromPos:    rec.boardPos,
				ToPos:      rec.alightPos,
				Constraint: rec.constraint,
			})
		case kindTransfer:
			prev := recs[i-1]
			p.Legs = append(p.Legs, Leg{Kind: TransferLeg, FromStop: prev.stop, ToStop: rec.stop, StartTime: prev.time, EndTime: rec.time})
		}
	}

	last := recs[len(recs)-1]
	dep := egress.EarliestDepartureTime(last.time)
	p.Legs = append(p.Legs, Leg{Kind: EgressLeg, FromStop: last.stop, ToStop: NoStop, StartTime: dep, EndTime: dep + egress.Duration, LegIndex: egressIndex})
	return p
}

// buildReverse walks a reverse search chain, which is already in real world order: the first
// arrival is where the rider boards the first trip and the last is the egress stop.
func (b *pathBuilder) buildReverse(a *arena, accessIndex int, access AccessEgress, idx int32) *Path {
	recs := b.chain(a, idx)

	p := &Path{Legs: make([]Leg, 0, len(recs)+1)}
	first := recs[0]
	start := b.calc.TimeAfterLeg(access, first.time)
	p.Legs = append(p.Legs, Leg{Kind: AccessLeg, FromStop: NoStop, ToStop: first.stop, StartTime: start, EndTime: start + access.Duration, LegIndex: accessIndex})

	// a reverse search boards the feeder with the constraint; the path puts it on the
	// connecting trip, which a guaranteed transfer holds until the feeder arrives
	var pending *TransferConstraint
	held := -1
	for i := 0; i < len(recs)-1; i++ {
		rec := recs[i]
		switch rec.kind {
		case kindTransit:
			start, end := rec.alightTime, rec.boardTime
			if pending != nil && pending.Guaranteed && start < held {
				start, end = held, max(end, held)
			}
			p.Legs = append(p.Legs, Leg{
				Kind:       TransitLeg,
				FromStop:   rec.stop,
				ToStop:     rec.boardStop,
				StartTime:  start,
				EndTime:    end,
				Trip:       rec.trip,
				FromPos:    rec.alightPos,
				ToPos:      rec.boardPos,
				Constraint: pending,
			})
			pending, held = rec.constraint, end
		case kindTransfer:
			next := recs[i+1]
			p.Legs = append(p.Legs, Leg{Kind: TransferLeg, FromStop: rec.stop, ToStop: next.stop, StartTime: rec.time, EndTime: next.time})
		}
	}

	egressRec := recs[len(recs)-1]
	lastTransit := recs[len(recs)-2]
	leg := b.req.Egress[egressRec.legIndex]
	dep := max(lastTransit.boardTime, held) + b.req.Slack.Alight
	if leg.HasOpeningHours() && leg.EarliestDepartureTime(dep) != dep {
		dep = egressRec.time
	}
	p.Legs = append(p.Legs, Leg{Kind: EgressLeg, FromStop: egressRec.stop, ToStop: NoStop, StartTime: dep, EndTime: dep + leg.Duration, LegIndex: egressRec.legIndex})
	return p
}
