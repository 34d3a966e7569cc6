package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/gtfsdb"
	"planner.onebusaway.org/internal/logging"
)

func isLocalSource(source string) bool {
	return !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://")
}

func rawGtfsData(ctx context.Context, source string) ([]byte, error) {
	if isLocalSource(source) {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "gtfs_static_downloader")),
		"http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error downloading GTFS data: status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	return b, nil
}

func buildGtfsDB(config Config) (*gtfsdb.Client, error) {
	dbConfig := gtfsdb.NewConfig(config.GTFSDataPath, config.Env, config.Verbose)
	client, err := gtfsdb.NewClient(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GTFS database client: %w", err)
	}
	return client, nil
}

// loadStatic parses raw, stores its stops, indexes it and publishes today's snapshot.
func (manager *Manager) loadStatic(ctx context.Context, raw []byte, source string) error {
	staticData, err := gtfs.ParseStatic(raw, gtfs.ParseStaticOptions{})
	if err != nil {
		return fmt.Errorf("error parsing GTFS data: %w", err)
	}

	hash := gtfsdb.FeedHash(raw)
	if current := manager.feed.Load(); current != nil && current.Hash == hash {
		logging.LogOperation(manager.logger, "gtfs_static_unchanged",
			slog.String("component", "gtfs_static"),
			slog.String("source", source))
		return nil
	}

	if _, err := manager.GtfsDB.ImportStatic(ctx, staticData, hash, source); err != nil {
		return fmt.Errorf("error importing GTFS stops: %w", err)
	}

	feed, err := NewFeed(ctx, staticData, FeedOptions{
		Archive:             raw,
		Hash:                hash,
		Source:              source,
		WalkSpeed:           manager.config.WalkSpeed,
		MaxTransferDistance: manager.config.MaxTransferDistance,
		Nearby:              manager.GtfsDB,
		Logger:              manager.logger,
	})
	if err != nil {
		return err
	}

	manager.feed.Store(feed)
	manager.snapshots.Purge()
	return manager.publish()
}

// updateStaticGTFS reloads the static feed on a schedule. Local files are not reloaded.
func (manager *Manager) updateStaticGTFS() {
	defer manager.wg.Done()

	logger := manager.logger.With(slog.String("component", "gtfs_static_updater"))

	ticker := time.NewTicker(manager.config.StaticRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			logging.LogOperation(logger, "updating_gtfs_static_data")

			raw, err := rawGtfsData(ctx, manager.config.GtfsURL)
			if err == nil {
				err = manager.loadStatic(ctx, raw, manager.config.GtfsURL)
			}
			cancel()
			if err != nil {
				logging.LogError(logger, "Error updating GTFS data", err,
					slog.String("source", manager.config.GtfsURL))
			}
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_static_updates")
			return
		}
	}
}
