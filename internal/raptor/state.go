package raptor

// workerState is the per-request mutable bookkeeping of a search. It is owned by one worker and
// never shared between goroutines.
type workerState interface {
	setupIteration(iterationTime int)
	setAccessToStop(legIndex int, leg AccessEgress)

	round() int
	prepareForNextRound()
	isNewRoundAvailable() bool
	stopsReachedInPreviousRound() []int
	isStopReachedInPreviousRound(stop int) bool

	transferToStops()
	// transitArrivalsAt returns the transit arrivals accepted at stop in the current round.
	transitArrivalsAt(stop int) []int32
	roundComplete()

	arrivals() *arena
	stopArrivalCount() int
}

// arrivalNotifier forwards accepted arrivals to the debug listener.
type arrivalNotifier struct {
	listener func(StopArrivalEvent)
}

func (n arrivalNotifier) notify(a *arena, iteration int, rec *stopArrival) {
	if n.listener == nil {
		return
	}
	ev := StopArrivalEvent{
		Iteration:     iteration,
		Round:         rec.round,
		Stop:          rec.stop,
		Time:          rec.time,
		Kind:          rec.kind.String(),
		BoardingRound: a.boardingRound(rec),
	}
	if rec.trip != nil {
		ev.TripID = rec.trip.ID
	}
	n.listener(ev)
}
