package gtfsdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jamespfennell/gtfs"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/logging"
)

//go:embed schema.sql
var ddl string

// ErrNotFound is returned when a stop id is not in the store.
var ErrNotFound = errors.New("gtfsdb: not found")

// Client is the stop store: a SQLite database holding the feed's stops behind an R*Tree index.
type Client struct {
	config        Config
	DB            *sql.DB
	logger        *slog.Logger
	importRuntime time.Duration
}

// ImportMetadata describes the last feed imported into the store.
type ImportMetadata struct {
	FileHash   string
	FileSource string
	ImportTime int64
	StopCount  int
}

// NewClient opens the database and applies the schema.
func NewClient(config Config) (*Client, error) {
	if config.Env == appconf.Test && !config.inMemory() {
		return nil, fmt.Errorf("test databases must be in memory, got %q", config.DBPath)
	}

	db, err := sql.Open("sqlite", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if config.inMemory() {
		// every connection to :memory: sees its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := performDatabaseMigration(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}

	return &Client{
		config: config,
		DB:     db,
		logger: slog.Default().With(slog.String("component", "gtfsdb")),
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// ImportRuntime reports how long the last import took.
func (c *Client) ImportRuntime() time.Duration {
	return c.importRuntime
}

func performDatabaseMigration(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

// FeedHash fingerprints raw feed bytes.
func FeedHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// GetImportMetadata returns the metadata of the last import, or ErrNotFound before the first one.
func (c *Client) GetImportMetadata(ctx context.Context) (ImportMetadata, error) {
	var m ImportMetadata
	err := c.DB.QueryRowContext(ctx,
		`SELECT file_hash, file_source, import_time, stop_count FROM import_metadata WHERE id = 1`,
	).Scan(&m.FileHash, &m.FileSource, &m.ImportTime, &m.StopCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportMetadata{}, ErrNotFound
	}
	if err != nil {
		return ImportMetadata{}, fmt.Errorf("reading import metadata: %w", err)
	}
	return m, nil
}

// ImportStatic replaces the stored stops with those of static unless a feed with the
// same hash was already imported. It reports whether anything was written.
func (c *Client) ImportStatic(ctx context.Context, static *gtfs.Static, hash, source string) (bool, error) {
	if prev, err := c.GetImportMetadata(ctx); err == nil && prev.FileHash == hash {
		if c.config.verbose {
			logging.LogOperation(c.logger, "gtfs_import_skipped_unchanged", slog.String("source", source))
		}
		return false, nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	start := time.Now()
	stops := stopsFromStatic(static)

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "import_static")

	if _, err := tx.ExecContext(ctx, `DELETE FROM stops`); err != nil {
		return false, fmt.Errorf("error clearing stops: %w", err)
	}
	if err := insertStops(ctx, tx, stops); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO import_metadata (id, file_hash, file_source, import_time, stop_count)
		VALUES (1, ?, ?, ?, ?)`,
		hash, source, time.Now().Unix(), len(stops),
	); err != nil {
		return false, fmt.Errorf("error writing import metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing transaction: %w", err)
	}

	c.importRuntime = time.Since(start)
	logging.LogOperation(c.logger, "gtfs_stops_imported",
		slog.String("source", source),
		slog.Int("stops", len(stops)),
		slog.Int("skipped_without_location", len(static.Stops)-len(stops)),
		slog.Duration("duration", c.importRuntime))
	return true, nil
}
