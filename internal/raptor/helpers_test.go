package raptor

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// hm parses "HH:MM" or "HH:MM:SS" into seconds after midnight.
func hm(s string) int {
	parts := strings.Split(s, ":")
	secs := 0
	for i, mult := range []int{3600, 60, 1} {
		if i >= len(parts) {
			break
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			panic("bad time " + s)
		}
		secs += n * mult
	}
	return secs
}

// tripAt creates a trip that arrives and departs at the same time at every stop.
func tripAt(id string, times ...string) TripInput {
	secs := make([]int, len(times))
	for i, t := range times {
		secs[i] = hm(t)
	}
	return TripInput{ID: id, Arrivals: secs, Departures: slices.Clone(secs)}
}

func newTestRouter(t *testing.T, b *TransitDataBuilder) *Router {
	t.Helper()
	data, err := b.Build()
	require.NoError(t, err)
	return NewRouter(data, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func transitTripIDs(p *Path) []string {
	var ids []string
	for _, l := range p.TransitLegs() {
		ids = append(ids, l.Trip.ID)
	}
	return ids
}

// dominatesPath reports whether a is at least as good as b in every criterion and better in one.
func dominatesPath(a, b *Path, mc bool) bool {
	if a.EndTime > b.EndTime || a.StartTime < b.StartTime || a.NumberOfTransfers > b.NumberOfTransfers {
		return false
	}
	if mc && a.GeneralizedCost > b.GeneralizedCost {
		return false
	}
	return a.EndTime < b.EndTime || a.StartTime > b.StartTime || a.NumberOfTransfers < b.NumberOfTransfers ||
		(mc && a.GeneralizedCost < b.GeneralizedCost)
}

// cityNetwork is a small network with crossing lines, walking transfers and a loop.
//
//	0 - 1 - 2 - 3     line A (two directions split by timetable)
//	    |   |
//	    4 - 5 - 6     line B
//	7 - 5 ... 3       line C
func cityNetwork() *TransitDataBuilder {
	b := NewTransitDataBuilder(8)
	var a, bl, c []TripInput
	for i := 0; i < 8; i++ {
		base := hm("07:00") + i*15*60
		a = append(a, TripInput{
			ID:         fmt.Sprintf("A%d", i),
			Arrivals:   []int{base, base + 300, base + 600, base + 1200},
			Departures: []int{base, base + 360, base + 660, base + 1200},
		})
		bbase := base + 420
		bl = append(bl, TripInput{
			ID:         fmt.Sprintf("B%d", i),
			Arrivals:   []int{bbase, bbase + 240, bbase + 480},
			Departures: []int{bbase, bbase + 240, bbase + 480},
		})
		cbase := base + 120
		c = append(c, TripInput{
			ID:         fmt.Sprintf("C%d", i),
			Arrivals:   []int{cbase, cbase + 400, cbase + 700},
			Departures: []int{cbase, cbase + 420, cbase + 700},
		})
	}
	b.AddPattern(PatternInput{RouteID: "A", Stops: []int{0, 1, 2, 3}, Trips: a})
	b.AddPattern(PatternInput{RouteID: "B", Stops: []int{4, 5, 6}, Trips: bl})
	b.AddPattern(PatternInput{RouteID: "C", Stops: []int{7, 5, 3}, Trips: c})
	b.AddTransfer(1, 4, 180).AddTransfer(4, 1, 180)
	b.AddTransfer(2, 5, 240).AddTransfer(5, 2, 240)
	b.AddTransfer(0, 7, 300).AddTransfer(7, 0, 300)
	return b
}
