package raptor

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

type vec struct{ time, transfers int }

func vecDominates(a, b vec) bool { return a.time <= b.time && a.transfers <= b.transfers }

func TestParetoSetAdd(t *testing.T) {
	s := newParetoSet(vecDominates)

	assert.True(t, s.add(vec{100, 2}))
	assert.True(t, s.add(vec{120, 1}))
	assert.False(t, s.add(vec{130, 2}), "dominated")
	assert.False(t, s.add(vec{100, 2}), "equal")
	assert.True(t, s.add(vec{90, 1}), "dominates both")
	assert.Equal(t, []vec{{90, 1}}, s.all())

	assert.True(t, s.add(vec{200, 0}))
	assert.Equal(t, 2, s.len())

	s.reset()
	assert.Zero(t, s.len())
}

func TestIterationsRunFromTheFarEnd(t *testing.T) {
	req := &Request{EarliestDepartureTime: 1000, LatestArrivalTime: 5000, SearchWindow: 150, IterationStep: 60}

	assert.Equal(t, []int{1120, 1060, 1000}, slices.Collect(forwardCalculator{}.Iterations(req)))
	assert.Equal(t, []int{4880, 4940, 5000}, slices.Collect(reverseCalculator{}.Iterations(req)))

	req.SearchWindow = 0
	assert.Equal(t, []int{1000}, slices.Collect(forwardCalculator{}.Iterations(req)))
}

func TestAccessEgressOpeningHours(t *testing.T) {
	leg := AccessEgress{Stop: 0, Duration: 300, Opening: hm("08:00"), Closing: hm("09:00")}

	assert.Equal(t, hm("08:00"), leg.EarliestDepartureTime(hm("07:00")))
	assert.Equal(t, hm("08:30"), leg.EarliestDepartureTime(hm("08:30")))
	assert.Equal(t, NotAvailable, leg.EarliestDepartureTime(hm("09:01")))

	assert.Equal(t, hm("09:05"), leg.LatestArrivalTime(hm("10:00")))
	assert.Equal(t, hm("08:30"), leg.LatestArrivalTime(hm("08:30")))
	assert.Equal(t, NotAvailable, leg.LatestArrivalTime(hm("08:04")))

	open := AccessEgress{Stop: 0, Duration: 300}
	assert.Equal(t, hm("03:00"), open.EarliestDepartureTime(hm("03:00")))
	assert.Equal(t, hm("08:05"), forwardCalculator{}.TimeAfterLeg(leg, hm("07:00")))
	assert.Equal(t, hm("09:00"), reverseCalculator{}.TimeAfterLeg(leg, hm("10:00")))
}
