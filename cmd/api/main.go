package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/restapi"
	"planner.onebusaway.org/internal/webui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Path to a YAML config file")
		port        = flag.Int("port", 4000, "API server port")
		env         = flag.String("env", "development", "Environment (development|test|production)")
		apiKeys     = flag.String("api-keys", "test", "Comma separated API keys")
		gtfsURL     = flag.String("gtfs-url", "", "URL or path of a static GTFS zip file")
		tripUpdates = flag.String("trip-updates-url", "", "GTFS-realtime trip updates URL")
		vehicles    = flag.String("vehicle-positions-url", "", "GTFS-realtime vehicle positions URL")
		dataPath    = flag.String("data-path", "", "Path of the SQLite stop index, :memory: to keep it in memory")
		logLevel    = flag.String("log-level", "", "Log level (debug|info|warn|error)")
	)
	flag.Parse()

	// flags given on the command line win over the config file and the environment
	cfg, err := appconf.Load(*configPath, func(c *appconf.Config) {
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "port":
				c.Server.Port = *port
			case "env":
				c.Server.Env = appconf.EnvFromString(*env)
			case "api-keys":
				c.Server.APIKeys = appconf.SplitList(*apiKeys)
			case "gtfs-url":
				c.GTFS.StaticURL = *gtfsURL
			case "trip-updates-url":
				c.GTFS.TripUpdatesURL = *tripUpdates
			case "vehicle-positions-url":
				c.GTFS.VehiclePositionsURL = *vehicles
			case "data-path":
				c.GTFS.DataPath = *dataPath
			case "log-level":
				c.Logging.Level = *logLevel
			}
		})
	})
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(os.Stdout, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	application, err := app.Init(cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to initialize GTFS manager", err)
		return err
	}
	defer application.GtfsManager.Shutdown()
	application.GtfsManager.LogStatistics()

	api := restapi.NewRestAPI(application)
	defer api.Close()

	web := &webui.WebUI{GtfsManager: application.GtfsManager}
	registers := []func(*http.ServeMux){web.SetWebUIRoutes}
	if cfg.Server.Env == appconf.Development {
		registers = append(registers, registerPprofHandlers)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Handler(registers...),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Routing.RequestTimeout + 10*time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Server.Env)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
	}
	return nil
}
