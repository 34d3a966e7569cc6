package raptor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleTripNetwork(trips ...TripInput) *TransitDataBuilder {
	return NewTransitDataBuilder(2).AddPattern(PatternInput{RouteID: "R1", Stops: []int{0, 1}, Trips: trips})
}

func TestRouteBoardsFirstCatchableTrip(t *testing.T) {
	router := newTestRouter(t, singleTripNetwork(tripAt("T1", "08:00", "08:10")))

	var events []StopArrivalEvent
	resp, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("07:50"),
		MaxNumberOfTransfers:  2,
		Access:                []AccessEgress{{Stop: 0, Duration: 300}},
		Egress:                []AccessEgress{{Stop: 1}},
		Debug:                 DebugOptions{StopArrivalListener: func(e StopArrivalEvent) { events = append(events, e) }},
	})
	require.NoError(t, err)
	require.Len(t, resp.Paths, 1)

	p := resp.Paths[0]
	assert.Equal(t, hm("07:55"), p.StartTime)
	assert.Equal(t, hm("08:10"), p.EndTime)
	assert.Equal(t, 0, p.NumberOfTransfers)
	require.Len(t, p.Legs, 3)
	assert.Equal(t, AccessLeg, p.Legs[0].Kind)
	assert.Equal(t, Leg{Kind: TransitLeg, FromStop: 0, ToStop: 1, StartTime: hm("08:00"), EndTime: hm("08:10"), Trip: p.Legs[1].Trip, FromPos: 0, ToPos: 1}, p.Legs[1])
	assert.Equal(t, "T1", p.Legs[1].Trip.ID)
	assert.Equal(t, EgressLeg, p.Legs[2].Kind)

	assert.Contains(t, events, StopArrivalEvent{Iteration: hm("07:50"), Round: 0, Stop: 0, Time: hm("07:55"), Kind: "access", BoardingRound: -1})
	assert.Contains(t, events, StopArrivalEvent{Iteration: hm("07:50"), Round: 1, Stop: 1, Time: hm("08:10"), Kind: "transit", BoardingRound: 0, TripID: "T1"})
}

func TestRouteMissedTripBoardsNextOne(t *testing.T) {
	t.Run("next trip exists", func(t *testing.T) {
		router := newTestRouter(t, singleTripNetwork(
			tripAt("T1", "08:00", "08:10"),
			tripAt("T1b", "08:15", "08:25"),
		))
		resp, err := router.Route(context.Background(), Request{
			EarliestDepartureTime: hm("08:00"),
			MaxNumberOfTransfers:  2,
			Access:                []AccessEgress{{Stop: 0, Duration: 300}},
			Egress:                []AccessEgress{{Stop: 1}},
		})
		require.NoError(t, err)
		require.Len(t, resp.Paths, 1)
		assert.Equal(t, []string{"T1b"}, transitTripIDs(resp.Paths[0]))
		assert.Equal(t, hm("08:25"), resp.Paths[0].EndTime)
	})

	t.Run("no later trip is not an error", func(t *testing.T) {
		router := newTestRouter(t, singleTripNetwork(tripAt("T1", "08:00", "08:10")))
		resp, err := router.Route(context.Background(), Request{
			EarliestDepartureTime: hm("08:00"),
			MaxNumberOfTransfers:  2,
			Access:                []AccessEgress{{Stop: 0, Duration: 300}},
			Egress:                []AccessEgress{{Stop: 1}},
		})
		require.NoError(t, err)
		assert.True(t, resp.NoPathFound())
		assert.Equal(t, 1, resp.Stats.Iterations)
	})
}

func TestRouteRangeReturnsOnePathPerDeparture(t *testing.T) {
	var trips []TripInput
	for _, dep := range []string{"08:00", "08:10", "08:20", "08:30", "08:40", "08:50"} {
		arr := FormatTime(hm(dep) + 20*60)
		trips = append(trips, tripAt("T"+dep, dep, arr[:5]))
	}
	router := newTestRouter(t, singleTripNetwork(trips...))

	resp, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("08:00"),
		SearchWindow:          1800,
		MaxNumberOfTransfers:  2,
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Paths, 4)

	for i, dep := range []string{"08:00", "08:10", "08:20", "08:30"} {
		assert.Equal(t, hm(dep), resp.Paths[i].StartTime)
		assert.Equal(t, hm(dep)+1200, resp.Paths[i].EndTime)
	}
	assert.Equal(t, 31, resp.Stats.Iterations+resp.Stats.SkippedIterations)
}

func TestRouteTransfersBetweenLines(t *testing.T) {
	router := newTestRouter(t, cityNetwork())

	resp, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("07:00"),
		MaxNumberOfTransfers:  4,
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 6}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Paths)

	p := resp.Paths[0]
	ids := transitTripIDs(p)
	require.Len(t, ids, 2)
	assert.Equal(t, "A0", ids[0])
	assert.Equal(t, "B", ids[1][:1])

	// legs are continuous in time and space
	for i := 1; i < len(p.Legs); i++ {
		assert.LessOrEqual(t, p.Legs[i-1].EndTime, p.Legs[i].StartTime, "leg %d of %s", i, p)
		assert.Equal(t, p.Legs[i-1].ToStop, p.Legs[i].FromStop, "leg %d of %s", i, p)
	}
}

// Every transit arrival boards from the previous round, and no accepted arrival is worse than
// an arrival of the same kind already at the stop in the same iteration.
func TestRouteCausalityAndMonotonicRounds(t *testing.T) {
	router := newTestRouter(t, cityNetwork())

	type key struct{ iteration, stop int }
	bestTransit := map[key]int{}
	bestAny := map[key]int{}
	lastRound := map[int]int{}
	var violations []StopArrivalEvent

	_, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("07:00"),
		SearchWindow:          3600,
		MaxNumberOfTransfers:  5,
		Access:                []AccessEgress{{Stop: 0}, {Stop: 4, Duration: 400}},
		Egress:                []AccessEgress{{Stop: 6}, {Stop: 3, Duration: 200}},
		Debug: DebugOptions{StopArrivalListener: func(e StopArrivalEvent) {
			k := key{e.Iteration, e.Stop}
			if e.Round < lastRound[e.Iteration] {
				violations = append(violations, e)
			}
			lastRound[e.Iteration] = e.Round
			switch e.Kind {
			case "transit":
				if e.BoardingRound != e.Round-1 {
					violations = append(violations, e)
				}
				if prev, ok := bestTransit[k]; ok && e.Time >= prev {
					violations = append(violations, e)
				}
				bestTransit[k] = e.Time
				if prev, ok := bestAny[k]; !ok || e.Time < prev {
					bestAny[k] = e.Time
				}
			default:
				if prev, ok := bestAny[k]; ok && e.Time >= prev {
					violations = append(violations, e)
				}
				bestAny[k] = e.Time
			}
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.NotEmpty(t, bestAny)
}

func TestRouteResultIsParetoOptimalAndDeterministic(t *testing.T) {
	for _, profile := range []Profile{StandardProfile, MultiCriteriaProfile} {
		t.Run(profile.String(), func(t *testing.T) {
			router := newTestRouter(t, cityNetwork())
			req := Request{
				Profile:               profile,
				EarliestDepartureTime: hm("07:00"),
				SearchWindow:          5400,
				MaxNumberOfTransfers:  5,
				Access:                []AccessEgress{{Stop: 0}, {Stop: 7, Duration: 240}},
				Egress:                []AccessEgress{{Stop: 6}, {Stop: 3, Duration: 300}},
			}

			first, err := router.Route(context.Background(), req)
			require.NoError(t, err)
			require.NotEmpty(t, first.Paths)

			mc := profile == MultiCriteriaProfile
			for i, a := range first.Paths {
				for j, b := range first.Paths {
					if i != j {
						assert.False(t, dominatesPath(a, b, mc), "%s dominates %s", a, b)
					}
				}
			}

			second, err := router.Route(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, first.Paths, second.Paths)
		})
	}
}

func TestRouteMultiCriteriaKeepsCheaperSlowerPath(t *testing.T) {
	b := NewTransitDataBuilder(4).
		AddPattern(PatternInput{RouteID: "X", Stops: []int{0, 2}, Trips: []TripInput{tripAt("TX", "08:20", "09:00")}}).
		AddPattern(PatternInput{RouteID: "Y", Stops: []int{1, 3}, Trips: []TripInput{tripAt("TY", "08:01", "09:05")}})
	router := newTestRouter(t, b)

	req := Request{
		EarliestDepartureTime: hm("08:00"),
		MaxNumberOfTransfers:  2,
		Access:                []AccessEgress{{Stop: 0, Duration: 1200}, {Stop: 1, Duration: 60}},
		Egress:                []AccessEgress{{Stop: 2}, {Stop: 3}},
	}

	std, err := router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, std.Paths, 1)
	assert.Equal(t, []string{"TX"}, transitTripIDs(std.Paths[0]))
	assert.Zero(t, std.Paths[0].GeneralizedCost)

	req.Profile = MultiCriteriaProfile
	mc, err := router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, mc.Paths, 2)

	byTrip := map[string]*Path{}
	for _, p := range mc.Paths {
		byTrip[transitTripIDs(p)[0]] = p
	}
	require.Contains(t, byTrip, "TX")
	require.Contains(t, byTrip, "TY")
	assert.Less(t, byTrip["TY"].GeneralizedCost, byTrip["TX"].GeneralizedCost)
	assert.Less(t, byTrip["TX"].EndTime, byTrip["TY"].EndTime)
}

func TestRouteReverseMatchesForward(t *testing.T) {
	router := newTestRouter(t, singleTripNetwork(tripAt("T1", "08:00", "08:10")))
	access := []AccessEgress{{Stop: 0, Duration: 300}}
	egress := []AccessEgress{{Stop: 1, Duration: 120}}

	fwd, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("07:50"),
		MaxNumberOfTransfers:  2,
		Access:                access,
		Egress:                egress,
	})
	require.NoError(t, err)

	rev, err := router.Route(context.Background(), Request{
		Direction:            Reverse,
		LatestArrivalTime:    hm("08:20"),
		MaxNumberOfTransfers: 2,
		Access:               access,
		Egress:               egress,
	})
	require.NoError(t, err)

	require.Len(t, fwd.Paths, 1)
	require.Len(t, rev.Paths, 1)
	assert.Equal(t, fwd.Paths[0], rev.Paths[0])
	assert.Equal(t, hm("07:55"), rev.Paths[0].StartTime)
	assert.Equal(t, hm("08:12"), rev.Paths[0].EndTime)
}

func TestRouteReverseWithTransfers(t *testing.T) {
	router := newTestRouter(t, cityNetwork())

	resp, err := router.Route(context.Background(), Request{
		Direction:            Reverse,
		LatestArrivalTime:    hm("09:00"),
		SearchWindow:         1800,
		MaxNumberOfTransfers: 4,
		Access:               []AccessEgress{{Stop: 0}},
		Egress:               []AccessEgress{{Stop: 6}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Paths)

	for _, p := range resp.Paths {
		assert.LessOrEqual(t, p.EndTime, hm("09:00"))
		assert.Equal(t, AccessLeg, p.Legs[0].Kind)
		assert.Equal(t, EgressLeg, p.Legs[len(p.Legs)-1].Kind)
		for i := 1; i < len(p.Legs); i++ {
			assert.LessOrEqual(t, p.Legs[i-1].EndTime, p.Legs[i].StartTime, "leg %d of %s", i, p)
			assert.Equal(t, p.Legs[i-1].ToStop, p.Legs[i].FromStop, "leg %d of %s", i, p)
		}
	}
}

func TestRouteHeuristicsSkipHopelessIterations(t *testing.T) {
	router := newTestRouter(t, singleTripNetwork(tripAt("T1", "08:30", "08:40")))
	req := Request{
		EarliestDepartureTime: hm("08:00"),
		SearchWindow:          3600,
		MaxNumberOfTransfers:  2,
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 1}},
	}

	h, err := router.Heuristics(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, h.StopReachable(0))
	assert.True(t, h.Reachable(0, hm("08:30")))
	assert.False(t, h.Reachable(0, hm("08:31")))

	req.Heuristics = h
	resp, err := router.Route(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Paths, 1)
	assert.Equal(t, 30, resp.Stats.SkippedIterations)
	assert.Equal(t, hm("08:30"), resp.Paths[0].StartTime)
}

func TestRouteAccessOpeningHours(t *testing.T) {
	router := newTestRouter(t, singleTripNetwork(
		tripAt("T1", "08:00", "08:10"),
		tripAt("T2", "09:00", "09:10"),
	))

	resp, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("07:30"),
		MaxNumberOfTransfers:  1,
		Access:                []AccessEgress{{Stop: 0, Duration: 600, Opening: hm("08:30"), Closing: hm("09:30")}},
		Egress:                []AccessEgress{{Stop: 1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Paths, 1)
	assert.Equal(t, []string{"T2"}, transitTripIDs(resp.Paths[0]))
	assert.Equal(t, hm("08:50"), resp.Paths[0].StartTime)
}

func TestRouteAbortsWhenContextDone(t *testing.T) {
	router := newTestRouter(t, cityNetwork())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := router.Route(ctx, Request{
		EarliestDepartureTime: hm("07:00"),
		SearchWindow:          3600,
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 6}},
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouteAbortsBetweenIterations(t *testing.T) {
	router := newTestRouter(t, cityNetwork())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	iterations := map[int]bool{}
	_, err := router.Route(ctx, Request{
		EarliestDepartureTime: hm("07:00"),
		SearchWindow:          3600,
		MaxNumberOfTransfers:  3,
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 6}},
		Debug: DebugOptions{StopArrivalListener: func(e StopArrivalEvent) {
			iterations[e.Iteration] = true
			if len(iterations) == 2 {
				cancel()
			}
		}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.Len(t, iterations, 2)
}

func TestRouteRejectsInvalidRequests(t *testing.T) {
	router := newTestRouter(t, cityNetwork())
	valid := Request{
		EarliestDepartureTime: hm("07:00"),
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 6}},
	}

	tests := []struct {
		name   string
		modify func(r *Request)
	}{
		{"no access", func(r *Request) { r.Access = nil }},
		{"no egress", func(r *Request) { r.Egress = nil }},
		{"unknown stop", func(r *Request) { r.Egress = []AccessEgress{{Stop: 99}} }},
		{"negative duration", func(r *Request) { r.Access = []AccessEgress{{Stop: 0, Duration: -1}} }},
		{"negative window", func(r *Request) { r.SearchWindow = -60 }},
		{"negative slack", func(r *Request) { r.Slack.Board = -1 }},
		{"negative departure", func(r *Request) { r.EarliestDepartureTime = -1 }},
		{"opening after closing", func(r *Request) {
			r.Access = []AccessEgress{{Stop: 0, Opening: hm("10:00"), Closing: hm("09:00")}}
		}},
		{"unknown profile", func(r *Request) { r.Profile = Profile(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			_, err := router.Route(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestRouteSlackDelaysBoarding(t *testing.T) {
	router := newTestRouter(t, singleTripNetwork(
		tripAt("T1", "08:00", "08:10"),
		tripAt("T2", "08:05", "08:15"),
	))
	resp, err := router.Route(context.Background(), Request{
		EarliestDepartureTime: hm("07:58"),
		MaxNumberOfTransfers:  1,
		Slack:                 Slack{Board: 180, Alight: 60},
		Access:                []AccessEgress{{Stop: 0}},
		Egress:                []AccessEgress{{Stop: 1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Paths, 1)
	p := resp.Paths[0]
	assert.Equal(t, []string{"T2"}, transitTripIDs(p))
	// egress starts after the alight slack
	assert.Equal(t, hm("08:16"), p.EndTime)
	assert.Equal(t, hm("08:02"), p.StartTime)
}
