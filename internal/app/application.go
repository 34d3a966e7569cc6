package app

import (
	"fmt"
	"log/slog"
	"time"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/metrics"
	"planner.onebusaway.org/internal/routing"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config      appconf.Config
	GtfsConfig  gtfs.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Planner     *routing.Planner
	Metrics     *metrics.Collector
}

// GtfsConfigFrom translates the application configuration into the GTFS manager's.
func GtfsConfigFrom(cfg appconf.Config) gtfs.Config {
	return gtfs.Config{
		GtfsURL:                 cfg.GTFS.StaticURL,
		TripUpdatesURL:          cfg.GTFS.TripUpdatesURL,
		VehiclePositionsURL:     cfg.GTFS.VehiclePositionsURL,
		RealTimeAuthHeaderKey:   cfg.GTFS.AuthHeaderKey,
		RealTimeAuthHeaderValue: cfg.GTFS.AuthHeaderValue,
		GTFSDataPath:            cfg.GTFS.DataPath,
		Env:                     cfg.Server.Env,
		Verbose:                 cfg.Server.Env != appconf.Test,
		StaticRefreshInterval:   cfg.GTFS.StaticRefresh,
		RealtimeRefreshInterval: cfg.GTFS.RealtimeRefresh,
		WalkSpeed:               cfg.Routing.WalkSpeed,
		MaxTransferDistance:     cfg.Routing.MaxTransferDistance,
		SnapshotCacheSize:       cfg.Routing.SnapshotCacheSize,
	}
}

// New assembles an Application around an already loaded GTFS manager.
func New(cfg appconf.Config, gtfsConfig gtfs.Config, manager *gtfs.Manager, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	collector := metrics.NewCollector(func() time.Time {
		if snap := manager.Snapshot(); snap != nil {
			return snap.BuiltAt
		}
		return time.Time{}
	})
	return &Application{
		Config:      cfg,
		GtfsConfig:  gtfsConfig,
		Logger:      logger,
		GtfsManager: manager,
		Planner:     routing.NewPlanner(manager, manager.GtfsDB, cfg.Routing, logger, collector),
		Metrics:     collector,
	}
}

// Init loads the GTFS feed named by cfg and returns the running application.
func Init(cfg appconf.Config, logger *slog.Logger) (*Application, error) {
	gtfsConfig := GtfsConfigFrom(cfg)
	manager, err := gtfs.InitGTFSManager(gtfsConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing GTFS manager: %w", err)
	}
	return New(cfg, gtfsConfig, manager, logger), nil
}
