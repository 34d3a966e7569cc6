// Command speedtest plans a file of test cases against a GTFS feed and reports timings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/routing"
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
		gtfsPath    = flag.String("gtfs", "", "Static GTFS zip file or URL")
		casesPath   = flag.String("cases", "testcases.csv", "CSV file of test cases")
		outPath     = flag.String("out", "", "Write per-case results as CSV to this file")
		dateFlag    = flag.String("date", "", "Service date YYYY-MM-DD, defaults to today")
		parallelism = flag.Int("parallelism", 0, "Concurrent searches, defaults to GOMAXPROCS")
		repeat      = flag.Int("repeat", 1, "Run the whole set this many times")
		logLevel    = flag.String("log-level", "warn", "Log level")
	)
	flag.Parse()

	cfg, err := appconf.Load(*configPath, func(c *appconf.Config) {
		c.Server.Env = appconf.Test
		c.GTFS.DataPath = ":memory:"
		c.GTFS.TripUpdatesURL = ""
		c.GTFS.VehiclePositionsURL = ""
		c.Logging.Level = *logLevel
		if *gtfsPath != "" {
			c.GTFS.StaticURL = *gtfsPath
		}
	})
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(os.Stderr, "text", cfg.Logging.Level)
	if err != nil {
		return err
	}

	f, err := os.Open(*casesPath)
	if err != nil {
		return err
	}
	cases, err := readTestCases(f)
	logging.SafeCloseWithLogging(f, logger, "test_cases")
	if err != nil {
		return err
	}

	application, err := app.Init(cfg, logger)
	if err != nil {
		return err
	}
	defer application.GtfsManager.Shutdown()
	loc := application.GtfsManager.Location()

	date := time.Now().In(loc)
	if *dateFlag != "" {
		if date, err = time.ParseInLocation("2006-01-02", *dateFlag, loc); err != nil {
			return fmt.Errorf("invalid date %q", *dateFlag)
		}
	}

	reqs := make([]routing.PlanRequest, len(cases))
	for i, c := range cases {
		if reqs[i], err = c.request(date, loc); err != nil {
			return err
		}
	}

	ctx := context.Background()
	var results []caseResult
	var total time.Duration
	for run := range max(*repeat, 1) {
		start := time.Now()
		batch := application.Planner.PlanBatch(ctx, reqs, *parallelism)
		elapsed := time.Since(start)
		total += elapsed

		results = results[:0]
		failed := 0
		for i, res := range batch {
			r := summarize(cases[i].ID, res, loc)
			if r.Status != "OK" {
				failed++
			}
			results = append(results, r)
		}
		logging.LogOperation(logger, "speedtest_run",
			slog.Int("run", run+1),
			slog.Int("cases", len(cases)),
			slog.Int("without_itinerary", failed),
			slog.Duration("elapsed", elapsed))
	}

	for _, r := range results {
		fmt.Printf("%-12s %-18s %2d itineraries  %8s -> %-8s  %2d transfers  %5d ms  %s\n",
			r.ID, r.Status, r.Itineraries, r.Departure, r.Arrival, r.Transfers, r.Millis, r.Error)
	}
	runs := max(*repeat, 1)
	fmt.Printf("\n%d cases x %d runs, %v per run\n", len(cases), runs, (total / time.Duration(runs)).Round(time.Millisecond))

	if *outPath != "" {
		out, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer logging.SafeCloseWithLogging(out, logger, "results_file")
		if err := writeResults(out, results); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
	}
	return nil
}
