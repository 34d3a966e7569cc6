package gtfs

import (
	"time"

	"planner.onebusaway.org/internal/appconf"
)

type Config struct {
	GtfsURL                 string
	TripUpdatesURL          string
	VehiclePositionsURL     string
	RealTimeAuthHeaderKey   string
	RealTimeAuthHeaderValue string
	GTFSDataPath            string
	Env                     appconf.Environment
	Verbose                 bool

	StaticRefreshInterval   time.Duration
	RealtimeRefreshInterval time.Duration

	// footpath generation
	WalkSpeed           float64 // meters per second
	MaxTransferDistance float64 // meters, zero disables generated footpaths

	// snapshots kept for dates other than today
	SnapshotCacheSize int

	// Now is the clock used to pick today's service date. Defaults to time.Now.
	Now func() time.Time
}

func (config Config) realTimeDataEnabled() bool {
	return config.TripUpdatesURL != ""
}

func (config Config) now() time.Time {
	if config.Now != nil {
		return config.Now()
	}
	return time.Now()
}

func (config Config) withDefaults() Config {
	if config.GTFSDataPath == "" {
		config.GTFSDataPath = ":memory:"
	}
	if config.StaticRefreshInterval <= 0 {
		config.StaticRefreshInterval = 24 * time.Hour
	}
	if config.RealtimeRefreshInterval <= 0 {
		config.RealtimeRefreshInterval = 30 * time.Second
	}
	if config.WalkSpeed <= 0 {
		config.WalkSpeed = 1.33
	}
	if config.SnapshotCacheSize <= 0 {
		config.SnapshotCacheSize = 4
	}
	return config
}
