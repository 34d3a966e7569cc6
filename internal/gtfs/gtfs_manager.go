package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"
	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/gtfsdb"
	"planner.onebusaway.org/internal/logging"
)

var ErrNoData = errors.New("no GTFS data loaded")

// Manager owns the static feed, the realtime state and the published routing snapshot.
// Snapshots are swapped atomically; a request keeps the snapshot it started with.
type Manager struct {
	config Config
	logger *slog.Logger
	GtfsDB *gtfsdb.Client

	feed      atomic.Pointer[Feed]
	snapshot  atomic.Pointer[Snapshot]
	snapshots gcache.Cache // static snapshots of other service days, keyed by feed hash and date
	version   atomic.Uint64
	publishMu sync.Mutex

	realTimeTrips     []gtfs.Trip
	realTimeVehicles  []gtfs.Vehicle
	delays            map[string]TripDelay
	realtimeFetchedAt time.Time
	realTimeMutex     sync.RWMutex

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func newManager(config Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.withDefaults()

	gtfsDB, err := buildGtfsDB(config)
	if err != nil {
		return nil, fmt.Errorf("error building GTFS database: %w", err)
	}

	return &Manager{
		config:       config,
		logger:       logger.With(slog.String("component", "gtfs_manager")),
		GtfsDB:       gtfsDB,
		snapshots:    gcache.New(config.SnapshotCacheSize).LRU().Build(),
		shutdownChan: make(chan struct{}),
	}, nil
}

// InitGTFSManager loads the static feed from config.GtfsURL, which is either a URL
// or a local file path, and starts the background refresh loops.
func InitGTFSManager(config Config, logger *slog.Logger) (*Manager, error) {
	manager, err := newManager(config, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	raw, err := rawGtfsData(ctx, manager.config.GtfsURL)
	if err == nil {
		err = manager.loadStatic(ctx, raw, manager.config.GtfsURL)
	}
	if err != nil {
		_ = manager.GtfsDB.Close()
		return nil, err
	}

	if !isLocalSource(manager.config.GtfsURL) {
		manager.wg.Add(1)
		go manager.updateStaticGTFS()
	}

	if manager.config.realTimeDataEnabled() {
		rtCtx, rtCancel := context.WithTimeout(context.Background(), 15*time.Second)
		manager.updateGTFSRealtime(logging.WithLogger(rtCtx, manager.logger))
		rtCancel()
	}
	manager.wg.Add(1)
	go manager.updateGTFSRealtimePeriodically()

	return manager, nil
}

// NewManagerFromBytes builds a manager from an in-memory feed without background loops.
func NewManagerFromBytes(config Config, raw []byte, logger *slog.Logger) (*Manager, error) {
	manager, err := newManager(config, logger)
	if err != nil {
		return nil, err
	}
	source := config.GtfsURL
	if source == "" {
		source = "memory"
	}
	if err := manager.loadStatic(context.Background(), raw, source); err != nil {
		_ = manager.GtfsDB.Close()
		return nil, err
	}
	return manager, nil
}

// Shutdown gracefully shuts down the manager and its background goroutines
func (manager *Manager) Shutdown() {
	manager.shutdownOnce.Do(func() {
		close(manager.shutdownChan)
		manager.wg.Wait()
		if manager.GtfsDB != nil {
			_ = manager.GtfsDB.Close()
		}
	})
}

// publish rebuilds the snapshot of today's service day from the current feed and delays.
func (manager *Manager) publish() error {
	manager.publishMu.Lock()
	defer manager.publishMu.Unlock()

	feed := manager.feed.Load()
	if feed == nil {
		return ErrNoData
	}
	delays, fetchedAt := manager.realtimeState()

	start := time.Now()
	snap, err := feed.BuildSnapshot(manager.config.now(), delays, manager.version.Add(1))
	if err != nil {
		return err
	}
	snap.realtimeStamp = fetchedAt
	manager.snapshot.Store(snap)

	logging.LogOperation(manager.logger, "snapshot_published",
		slog.Uint64("version", snap.Version),
		slog.String("service_date", snap.ServiceDate.Add(12*time.Hour).Format("2006-01-02")),
		slog.Int("patterns", snap.Data.NumberOfPatterns()),
		slog.Int("delayed_trips", snap.DelayedTrips),
		slog.Int("skipped_trips", snap.SkippedTrips),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Snapshot returns the published snapshot of today's service day, or nil before the first load.
func (manager *Manager) Snapshot() *Snapshot {
	return manager.snapshot.Load()
}

// Feed returns the current static feed index.
func (manager *Manager) Feed() *Feed {
	return manager.feed.Load()
}

// SnapshotFor returns a snapshot covering the service day of t. Days other than
// the published one are built from the static schedule and cached.
func (manager *Manager) SnapshotFor(ctx context.Context, t time.Time) (*Snapshot, error) {
	current := manager.snapshot.Load()
	if current == nil {
		return nil, ErrNoData
	}
	if current.SameServiceDay(t) {
		return current, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feed := current.Feed
	key := feed.Hash + "|" + t.In(feed.Location).Format("20060102")
	if cached, err := manager.snapshots.Get(key); err == nil {
		return cached.(*Snapshot), nil
	}

	snap, err := feed.BuildSnapshot(t, nil, current.Version)
	if err != nil {
		return nil, err
	}
	_ = manager.snapshots.Set(key, snap)
	return snap, nil
}

// Location is the agency time zone, UTC before the first load.
func (manager *Manager) Location() *time.Location {
	if feed := manager.feed.Load(); feed != nil {
		return feed.Location
	}
	return time.UTC
}

// LogStatistics logs the size of the loaded data.
func (manager *Manager) LogStatistics() {
	feed := manager.feed.Load()
	snap := manager.snapshot.Load()
	if feed == nil || snap == nil {
		return
	}
	logging.LogOperation(manager.logger, "gtfs_statistics",
		slog.String("source", feed.Source),
		slog.Time("loaded_at", feed.LoadedAt),
		slog.Int("stops", len(feed.Static.Stops)),
		slog.Int("routes", len(feed.Static.Routes)),
		slog.Int("trips", len(feed.Static.Trips)),
		slog.Int("agencies", len(feed.Static.Agencies)),
		slog.Int("footpaths", len(feed.Footpaths())),
		slog.Uint64("snapshot_version", snap.Version),
		slog.Duration("db_import", manager.GtfsDB.ImportRuntime()))
}
