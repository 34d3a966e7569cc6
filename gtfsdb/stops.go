package gtfsdb

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/internal/utils"
)

// Stop represents a transit stop or station in the GTFS feed
type Stop struct {
	ID                 string  // stop_id
	Code               string  // stop_code
	Name               string  // stop_name
	Desc               string  // stop_desc
	Lat                float64 // stop_lat
	Lon                float64 // stop_lon
	LocationType       int     // location_type
	ParentStation      string  // parent_station
	Timezone           string  // stop_timezone
	WheelchairBoarding int     // wheelchair_boarding
	PlatformCode       string  // platform_code
}

// NearbyStop is a stop with its straight-line distance from a query point.
type NearbyStop struct {
	Stop
	Distance float64 // meters
}

func stopsFromStatic(static *gtfs.Static) []Stop {
	stops := make([]Stop, 0, len(static.Stops))
	for _, s := range static.Stops {
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		stop := Stop{
			ID:                 s.Id,
			Code:               s.Code,
			Name:               s.Name,
			Desc:               s.Description,
			Lat:                *s.Latitude,
			Lon:                *s.Longitude,
			LocationType:       int(s.Type),
			Timezone:           s.Timezone,
			WheelchairBoarding: int(s.WheelchairBoarding),
			PlatformCode:       s.PlatformCode,
		}
		if s.Parent != nil {
			stop.ParentStation = s.Parent.Id
		}
		stops = append(stops, stop)
	}
	return stops
}

func insertStops(ctx context.Context, tx *sql.Tx, stops []Stop) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO stops (
			stop_id, stop_code, stop_name, stop_desc, stop_lat, stop_lon,
			location_type, parent_station, stop_timezone, wheelchair_boarding, platform_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, stop := range stops {
		_, err := stmt.ExecContext(ctx,
			stop.ID, toNullString(stop.Code), toNullString(stop.Name), toNullString(stop.Desc), stop.Lat, stop.Lon,
			stop.LocationType, toNullString(stop.ParentStation), toNullString(stop.Timezone),
			stop.WheelchairBoarding, toNullString(stop.PlatformCode),
		)
		if err != nil {
			return fmt.Errorf("error inserting stop %s: %w", stop.ID, err)
		}
	}
	return nil
}

const stopColumns = `s.stop_id, s.stop_code, s.stop_name, s.stop_desc, s.stop_lat, s.stop_lon,
	s.location_type, s.parent_station, s.stop_timezone, s.wheelchair_boarding, s.platform_code`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStop(row rowScanner) (Stop, error) {
	var (
		s                                                Stop
		code, name, desc, parent, timezone, platformCode sql.NullString
		locationType, wheelchair                         sql.NullInt64
	)
	err := row.Scan(&s.ID, &code, &name, &desc, &s.Lat, &s.Lon,
		&locationType, &parent, &timezone, &wheelchair, &platformCode)
	if err != nil {
		return Stop{}, err
	}
	s.Code, s.Name, s.Desc = code.String, name.String, desc.String
	s.ParentStation, s.Timezone, s.PlatformCode = parent.String, timezone.String, platformCode.String
	s.LocationType, s.WheelchairBoarding = int(locationType.Int64), int(wheelchair.Int64)
	return s, nil
}

// GetStop returns the stop with the given id.
func (c *Client) GetStop(ctx context.Context, id string) (Stop, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT `+stopColumns+` FROM stops s WHERE s.stop_id = ?`, id)
	stop, err := scanStop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Stop{}, fmt.Errorf("stop %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Stop{}, fmt.Errorf("error reading stop %s: %w", id, err)
	}
	return stop, nil
}

// CountStops returns the number of stored stops.
func (c *Client) CountStops(ctx context.Context) (int, error) {
	var n int
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting stops: %w", err)
	}
	return n, nil
}

// GetStopsWithinBounds returns the stops inside the box using the R*Tree index.
func (c *Client) GetStopsWithinBounds(ctx context.Context, box utils.BoundingBox) ([]Stop, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT `+stopColumns+`
		FROM stops s
		JOIN stops_rtree r ON s.rowid = r.id
		WHERE r.min_lat >= ? AND r.max_lat <= ? AND r.min_lon >= ? AND r.max_lon <= ?`,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("error querying stops within bounds: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var stops []Stop
	for rows.Next() {
		stop, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning stop: %w", err)
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

// NearbyStops returns up to limit stops within radius meters of lat/lon, nearest first.
// A limit of zero or less means no limit.
func (c *Client) NearbyStops(ctx context.Context, lat, lon, radius float64, limit int) ([]NearbyStop, error) {
	candidates, err := c.GetStopsWithinBounds(ctx, utils.BoundsAround(lat, lon, radius))
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyStop, 0, len(candidates))
	for _, stop := range candidates {
		d := utils.Haversine(lat, lon, stop.Lat, stop.Lon)
		if d <= radius {
			nearby = append(nearby, NearbyStop{Stop: stop, Distance: d})
		}
	}

	slices.SortFunc(nearby, func(a, b NearbyStop) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), strings.Compare(a.ID, b.ID))
	})

	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
