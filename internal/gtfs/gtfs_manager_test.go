package gtfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamespfennell/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/gtfs/gtfstest"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

// testNow is a Tuesday morning in the agency time zone.
func testNow(t *testing.T) time.Time {
	return time.Date(2026, 3, 10, 7, 0, 0, 0, losAngeles(t))
}

func testConfig(t *testing.T) Config {
	now := testNow(t)
	return Config{
		GTFSDataPath:        ":memory:",
		Env:                 appconf.Test,
		MaxTransferDistance: 400,
		Now:                 func() time.Time { return now },
	}
}

func newTestManager(t *testing.T, feed *gtfstest.Feed) *Manager {
	t.Helper()
	manager, err := NewManagerFromBytes(testConfig(t), feed.Zip(t), nil)
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)
	return manager
}

func stopIndex(t *testing.T, s *Snapshot, id string) int {
	t.Helper()
	i, ok := s.Feed.StopIndex(id)
	require.True(t, ok, "stop %s", id)
	return i
}

func ptr[T any](v T) *T { return &v }

func TestManagerPublishesSnapshot(t *testing.T) {
	manager := newTestManager(t, gtfstest.Default())

	snap := manager.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "America/Los_Angeles", manager.Location().String())
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, 6, snap.Data.NumberOfStops())
	assert.Equal(t, 2, snap.Data.NumberOfPatterns())
	assert.True(t, snap.SameServiceDay(testNow(t)))
	assert.True(t, time.Date(2026, 3, 10, 0, 0, 0, 0, losAngeles(t)).Equal(snap.ServiceDate))

	t1 := snap.Data.TripByID("T1")
	require.NotNil(t, t1)
	assert.Equal(t, 8*3600+10*60, t1.Arrival(1))
	assert.True(t, time.Date(2026, 3, 10, 8, 10, 0, 0, losAngeles(t)).Equal(snap.TimeOf(t1.Arrival(1))))
	assert.Equal(t, 7*3600, snap.SecondsOf(testNow(t)))

	b, d := stopIndex(t, snap, "B"), stopIndex(t, snap, "D")
	var walk []int
	for _, tr := range snap.Data.TransfersFrom(b) {
		if tr.ToStop == d {
			walk = append(walk, tr.Duration)
		}
	}
	require.Len(t, walk, 1, "B and D are within walking distance")
	assert.InDelta(t, 71, walk[0], 2)
	assert.Empty(t, snap.Data.TransfersFrom(stopIndex(t, snap, "F")))

	assert.Equal(t, []string{"R1"}, snap.RouteIDsForStop(b))
	assert.Equal(t, "N", snap.StopDirection(stopIndex(t, snap, "A")))

	n, err := manager.GtfsDB.CountStops(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestSnapshotForOtherServiceDays(t *testing.T) {
	feed := gtfstest.Default().With("calendar_dates.txt", `service_id,date,exception_type
ALL,20260311,2
`)
	manager := newTestManager(t, feed)
	ctx := context.Background()
	loc := losAngeles(t)

	today, err := manager.SnapshotFor(ctx, time.Date(2026, 3, 10, 23, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Same(t, manager.Snapshot(), today)

	removed, err := manager.SnapshotFor(ctx, time.Date(2026, 3, 11, 9, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, 0, removed.Data.NumberOfPatterns(), "service removed by calendar_dates")

	again, err := manager.SnapshotFor(ctx, time.Date(2026, 3, 11, 18, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Same(t, removed, again, "cached per service day")

	thursday, err := manager.SnapshotFor(ctx, time.Date(2026, 3, 12, 9, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, 2, thursday.Data.NumberOfPatterns())
}

func TestServiceDayStartAcrossDaylightSaving(t *testing.T) {
	loc := losAngeles(t)
	// 2026-03-08 is the spring-forward day: the service day starts at 23:00 the previous evening.
	start := ServiceDayStart(time.Date(2026, 3, 8, 10, 0, 0, 0, loc), loc)
	assert.Equal(t, time.Date(2026, 3, 8, 12, 0, 0, 0, loc).Add(-12*time.Hour), start)
	assert.Equal(t, 7, start.Day())
}

func TestApplyRealtimeDelays(t *testing.T) {
	manager := newTestManager(t, gtfstest.Default())

	err := manager.ApplyRealtime([]gtfs.Trip{{
		ID: gtfs.TripID{ID: "T1"},
		StopTimeUpdates: []gtfs.StopTimeUpdate{{
			StopSequence: ptr(uint32(2)),
			Arrival:      &gtfs.StopTimeEvent{Delay: ptr(5 * time.Minute)},
		}},
	}})
	require.NoError(t, err)

	snap := manager.Snapshot()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, 1, snap.DelayedTrips)
	assert.False(t, snap.RealtimeTimestamp().IsZero())
	assert.Len(t, manager.GetRealTimeTrips(), 1)

	t1 := snap.Data.TripByID("T1")
	require.NotNil(t, t1)
	assert.Equal(t, 8*3600, t1.Departure(0), "delay starts at the reported stop")
	assert.Equal(t, 8*3600+15*60, t1.Arrival(1))
	assert.Equal(t, 8*3600+25*60, t1.Arrival(2), "delay propagates downstream")

	t2 := snap.Data.TripByID("T2")
	assert.Equal(t, 8*3600+40*60, t2.Arrival(1))
}

func TestInitGTFSManagerFromLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.zip")
	require.NoError(t, os.WriteFile(path, gtfstest.Default().Zip(t), 0o600))

	config := testConfig(t)
	config.GtfsURL = path
	config.RealtimeRefreshInterval = 10 * time.Millisecond

	manager, err := InitGTFSManager(config, nil)
	require.NoError(t, err)
	require.NotNil(t, manager.Snapshot())
	manager.LogStatistics()

	done := make(chan struct{})
	go func() {
		manager.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown took too long")
	}

	// a second call is a no-op
	manager.Shutdown()
}

func TestInitGTFSManagerMissingFile(t *testing.T) {
	config := testConfig(t)
	config.GtfsURL = filepath.Join(t.TempDir(), "missing.zip")
	_, err := InitGTFSManager(config, nil)
	assert.Error(t, err)
}

func TestSnapshotForBeforeLoad(t *testing.T) {
	manager, err := newManager(testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	assert.Nil(t, manager.Snapshot())
	_, err = manager.SnapshotFor(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, time.UTC, manager.Location())
}
