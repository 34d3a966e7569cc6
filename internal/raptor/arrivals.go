package raptor

type arrivalKind uint8

const (
	kindAccess arrivalKind = iota
	kindTransit
	kindTransfer
)

func (k arrivalKind) String() string {
	switch k {
	case kindTransit:
		return "transit"
	case kindTransfer:
		return "transfer"
	}
	return "access"
}

const noArrival int32 = -1

// stopArrival is one accepted arrival. Arrivals reference their predecessor by arena index so a
// path is rebuilt by walking the arena, never through pointers between arrivals.
type stopArrival struct {
	kind     arrivalKind
	stop     int
	round    int
	time     int
	previous int32
	cost     int

	// access
	legIndex int

	// transit
	trip       *Trip
	boardStop  int
	boardPos   int
	boardTime  int
	alightPos  int
	alightTime int
	constraint *TransferConstraint

	// transfer
	duration int
}

// transitArrival is the trip and stop that produced an arrival, in raw trip time.
type transitArrival struct {
	trip *Trip
	stop int
	time int
}

type arena struct {
	arrivals []stopArrival
}

func (a *arena) add(rec stopArrival) int32 {
	a.arrivals = append(a.arrivals, rec)
	return int32(len(a.arrivals) - 1)
}

func (a *arena) get(i int32) *stopArrival { return &a.arrivals[i] }

// pop removes the most recently added arrival.
func (a *arena) pop() { a.arrivals = a.arrivals[:len(a.arrivals)-1] }

func (a *arena) reset() { a.arrivals = a.arrivals[:0] }

// transitOf follows a transfer arrival back to the transit arrival it started from.
func (a *arena) transitOf(i int32) (transitArrival, bool) {
	if i == noArrival {
		return transitArrival{}, false
	}
	rec := a.get(i)
	if rec.kind == kindTransfer {
		rec = a.get(rec.previous)
	}
	if rec.kind != kindTransit {
		return transitArrival{}, false
	}
	return transitArrival{trip: rec.trip, stop: rec.stop, time: rec.alightTime}, true
}

// boardingRound is the round of the arrival a transit arrival boarded from.
func (a *arena) boardingRound(rec *stopArrival) int {
	if rec.kind != kindTransit || rec.previous == noArrival {
		return -1
	}
	return a.get(rec.previous).round
}

// stopSet is a set of stop indices with cheap clearing.
type stopSet struct {
	marks []bool
	list  []int
}

func newStopSet(n int) *stopSet {
	return &stopSet{marks: make([]bool, n)}
}

func (s *stopSet) add(stop int) {
	if !s.marks[stop] {
		s.marks[stop] = true
		s.list = append(s.list, stop)
	}
}

func (s *stopSet) contains(stop int) bool { return s.marks[stop] }

func (s *stopSet) empty() bool { return len(s.list) == 0 }

func (s *stopSet) stops() []int { return s.list }

func (s *stopSet) clear() {
	for _, stop := range s.list {
		s.marks[stop] = false
	}
	s.list = s.list[:0]
}
