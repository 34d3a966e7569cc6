package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamespfennell/gtfs"
	"golang.org/x/sync/errgroup"

	"planner.onebusaway.org/internal/logging"
)

// StopDelay is one stop time update of a trip. It matches a stop by
// stop_sequence when present, otherwise by stop id.
type StopDelay struct {
	StopSequence    int
	HasStopSequence bool
	StopID          string
	Delay           int       // seconds, used when Time is zero
	Time            time.Time // absolute predicted arrival
}

func (u StopDelay) matches(st gtfs.ScheduledStopTime) bool {
	if u.HasStopSequence {
		return st.StopSequence == u.StopSequence
	}
	return st.Stop != nil && st.Stop.Id == u.StopID
}

// TripDelay holds the realtime updates of one scheduled trip.
type TripDelay struct {
	TripID  string
	Updates []StopDelay
}

func stopEvent(ev *gtfs.StopTimeEvent) (delay int, at time.Time, ok bool) {
	if ev == nil {
		return 0, time.Time{}, false
	}
	if ev.Delay != nil {
		return int(*ev.Delay / time.Second), time.Time{}, true
	}
	if ev.Time != nil {
		return 0, *ev.Time, true
	}
	return 0, time.Time{}, false
}

// delaysFromTrips turns GTFS-rt trip updates into delays keyed by trip id.
// Arrival events win over departure events.
func delaysFromTrips(trips []gtfs.Trip) map[string]TripDelay {
	delays := make(map[string]TripDelay, len(trips))
	for _, trip := range trips {
		id := trip.ID.ID
		if id == "" {
			continue
		}
		td := TripDelay{TripID: id}
		for _, stu := range trip.StopTimeUpdates {
			u := StopDelay{}
			if stu.StopSequence != nil {
				u.StopSequence, u.HasStopSequence = int(*stu.StopSequence), true
			} else if stu.StopID != nil {
				u.StopID = *stu.StopID
			} else {
				continue
			}
			d, at, ok := stopEvent(stu.Arrival)
			if !ok {
				d, at, ok = stopEvent(stu.Departure)
			}
			if !ok {
				continue
			}
			u.Delay, u.Time = d, at
			td.Updates = append(td.Updates, u)
		}
		if len(td.Updates) > 0 {
			delays[id] = td
		}
	}
	return delays
}

func loadRealtimeData(ctx context.Context, source string, headers map[string]string) (*gtfs.Realtime, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Add(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_realtime_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, source)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return gtfs.ParseRealtime(b, &gtfs.ParseRealtimeOptions{})
}

// updateGTFSRealtime fetches trip updates and vehicle positions in parallel.
// A failed fetch keeps the previous data of that kind. New trip updates publish a new snapshot.
func (manager *Manager) updateGTFSRealtime(ctx context.Context) {
	logger := logging.FromContext(ctx).With(slog.String("component", "gtfs_realtime"))
	config := manager.config

	headers := map[string]string{}
	if config.RealTimeAuthHeaderKey != "" && config.RealTimeAuthHeaderValue != "" {
		headers[config.RealTimeAuthHeaderKey] = config.RealTimeAuthHeaderValue
	}

	var tripData, vehicleData *gtfs.Realtime
	var g errgroup.Group

	g.Go(func() error {
		var err error
		tripData, err = loadRealtimeData(ctx, config.TripUpdatesURL, headers)
		if err != nil {
			logging.LogError(logger, "Error loading GTFS-RT trip updates data", err,
				slog.String("url", config.TripUpdatesURL))
		}
		return nil
	})

	if config.VehiclePositionsURL != "" {
		g.Go(func() error {
			var err error
			vehicleData, err = loadRealtimeData(ctx, config.VehiclePositionsURL, headers)
			if err != nil {
				logging.LogError(logger, "Error loading GTFS-RT vehicle positions data", err,
					slog.String("url", config.VehiclePositionsURL))
			}
			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	if vehicleData != nil {
		manager.realTimeMutex.Lock()
		manager.realTimeVehicles = vehicleData.Vehicles
		manager.realTimeMutex.Unlock()
	}
	if tripData != nil {
		manager.setRealtimeTrips(tripData.Trips, config.now())
		if err := manager.publish(); err != nil {
			logging.LogError(logger, "Error rebuilding snapshot with realtime data", err)
		}
	}
}

func (manager *Manager) setRealtimeTrips(trips []gtfs.Trip, fetchedAt time.Time) {
	delays := delaysFromTrips(trips)
	manager.realTimeMutex.Lock()
	defer manager.realTimeMutex.Unlock()
	manager.realTimeTrips = trips
	manager.delays = delays
	manager.realtimeFetchedAt = fetchedAt
}

// ApplyRealtime replaces the current trip updates and publishes a new snapshot.
func (manager *Manager) ApplyRealtime(trips []gtfs.Trip) error {
	manager.setRealtimeTrips(trips, manager.config.now())
	return manager.publish()
}

// GetRealTimeTrips returns the real-time trip updates
func (manager *Manager) GetRealTimeTrips() []gtfs.Trip {
	manager.realTimeMutex.RLock()
	defer manager.realTimeMutex.RUnlock()
	return manager.realTimeTrips
}

// GetRealTimeVehicles returns the real-time vehicle positions
func (manager *Manager) GetRealTimeVehicles() []gtfs.Vehicle {
	manager.realTimeMutex.RLock()
	defer manager.realTimeMutex.RUnlock()
	return manager.realTimeVehicles
}

// Delays returns the trip delays of the last realtime update, by trip id.
func (manager *Manager) Delays() map[string]TripDelay {
	delays, _ := manager.realtimeState()
	return delays
}

func (manager *Manager) realtimeState() (map[string]TripDelay, time.Time) {
	manager.realTimeMutex.RLock()
	defer manager.realTimeMutex.RUnlock()
	return manager.delays, manager.realtimeFetchedAt
}

// updateGTFSRealtimePeriodically also rebuilds the snapshot when the service day rolls over.
func (manager *Manager) updateGTFSRealtimePeriodically() {
	defer manager.wg.Done()

	logger := manager.logger.With(slog.String("component", "gtfs_realtime_updater"))

	ticker := time.NewTicker(manager.config.RealtimeRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			ctx = logging.WithLogger(ctx, logger)

			if manager.config.realTimeDataEnabled() {
				logging.LogOperation(logger, "updating_gtfs_realtime_data")
				manager.updateGTFSRealtime(ctx)
			} else if snap := manager.Snapshot(); snap != nil && !snap.SameServiceDay(manager.config.now()) {
				if err := manager.publish(); err != nil {
					logging.LogError(logger, "Error rebuilding snapshot for new service day", err)
				}
			}
			cancel()
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_realtime_updates")
			return
		}
	}
}
