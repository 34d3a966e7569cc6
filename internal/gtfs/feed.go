package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	_ "time/tzdata" // agency time zones in minimal images

	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/gtfsdb"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/utils"
)

// GTFS transfer_type values.
const (
	transferRecommended = 0
	transferTimed       = 1
	transferMinTime     = 2
	transferNotPossible = 3
)

var ErrEmptyFeed = errors.New("gtfs feed has no stops")

// StopFinder looks up stops around a point. gtfsdb.Client implements it.
type StopFinder interface {
	NearbyStops(ctx context.Context, lat, lon, radius float64, limit int) ([]gtfsdb.NearbyStop, error)
}

type StopInfo struct {
	ID          string
	Code        string
	Name        string
	Lat         float64
	Lon         float64
	HasLocation bool
	Parent      string

	LocationType       int
	WheelchairBoarding int
}

type RouteInfo struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Type      int
	Color     string
	TextColor string
}

// DisplayName is the short name when there is one, otherwise the long name.
func (r RouteInfo) DisplayName() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	return r.LongName
}

type TripInfo struct {
	ID        string
	RouteID   string
	ServiceID string
	Headsign  string
}

// Feed is the date-independent index of one static GTFS load: stop numbering,
// route and trip metadata, footpaths and transfer constraints.
type Feed struct {
	Static   *gtfs.Static
	Location *time.Location
	AgencyID string
	Hash     string
	Source   string
	LoadedAt time.Time
	Bounds   utils.BoundingBox

	stops       []StopInfo
	stopIndex   map[string]int
	children    map[string][]int
	routes      map[string]RouteInfo
	trips       map[string]TripInfo
	scheduled   map[string]*gtfs.ScheduledTrip
	footpaths   []raptor.Transfer
	constraints []raptor.ConstraintInput
	noPickup    map[stopTimeKey]bool
	noDropOff   map[stopTimeKey]bool
}

type FeedOptions struct {
	// Archive is the zip static was parsed from. Without it pickup and drop off
	// restrictions are ignored and same-stop transfers are missing.
	Archive             []byte
	Hash                string
	Source              string
	WalkSpeed           float64
	MaxTransferDistance float64
	Nearby              StopFinder
	Logger              *slog.Logger
}

// NewFeed indexes static. Generated footpaths need opts.Nearby and a positive
// opts.MaxTransferDistance; GTFS transfers are always applied.
func NewFeed(ctx context.Context, static *gtfs.Static, opts FeedOptions) (*Feed, error) {
	if len(static.Stops) == 0 {
		return nil, ErrEmptyFeed
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = 1.33
	}

	f := &Feed{
		Static:    static,
		Location:  time.UTC,
		Hash:      opts.Hash,
		Source:    opts.Source,
		LoadedAt:  time.Now(),
		stopIndex: make(map[string]int, len(static.Stops)),
		children:  make(map[string][]int),
		routes:    make(map[string]RouteInfo, len(static.Routes)),
		trips:     make(map[string]TripInfo, len(static.Trips)),
		scheduled: make(map[string]*gtfs.ScheduledTrip, len(static.Trips)),
	}

	if len(static.Agencies) > 0 {
		f.AgencyID = static.Agencies[0].Id
		if tz := static.Agencies[0].Timezone; tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return nil, fmt.Errorf("agency time zone %q: %w", tz, err)
			}
			f.Location = loc
		}
	}

	for _, s := range static.Stops {
		info := StopInfo{ID: s.Id, Code: s.Code, Name: s.Name, LocationType: int(s.Type), WheelchairBoarding: int(s.WheelchairBoarding)}
		if s.Latitude != nil && s.Longitude != nil {
			info.Lat, info.Lon, info.HasLocation = *s.Latitude, *s.Longitude, true
			f.Bounds.Extend(info.Lat, info.Lon)
		}
		if s.Parent != nil {
			info.Parent = s.Parent.Id
			f.children[info.Parent] = append(f.children[info.Parent], len(f.stops))
		}
		f.stopIndex[s.Id] = len(f.stops)
		f.stops = append(f.stops, info)
	}

	for _, r := range static.Routes {
		info := RouteInfo{
			ID:        r.Id,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      int(r.Type),
			Color:     r.Color,
			TextColor: r.TextColor,
			AgencyID:  f.AgencyID,
		}
		if r.Agency != nil && r.Agency.Id != "" {
			info.AgencyID = r.Agency.Id
		}
		f.routes[r.Id] = info
	}

	for i := range static.Trips {
		t := &static.Trips[i]
		f.scheduled[t.ID] = t
		info := TripInfo{ID: t.ID, Headsign: t.Headsign}
		if t.Route != nil {
			info.RouteID = t.Route.Id
		}
		if t.Service != nil {
			info.ServiceID = t.Service.Id
		}
		f.trips[t.ID] = info
	}

	transfers := transfersFromStatic(static)
	if opts.Archive != nil {
		tables, err := readArchiveTables(opts.Archive)
		if err != nil {
			return nil, err
		}
		f.noPickup, f.noDropOff, transfers = tables.noPickup, tables.noDropOff, tables.transfers
	}

	if err := f.indexTransfers(ctx, transfers, opts); err != nil {
		return nil, err
	}

	logging.LogOperation(logger, "gtfs_feed_indexed",
		slog.String("component", "gtfs_feed"),
		slog.String("source", opts.Source),
		slog.Int("stops", len(f.stops)),
		slog.Int("routes", len(f.routes)),
		slog.Int("trips", len(f.trips)),
		slog.Int("footpaths", len(f.footpaths)),
		slog.Int("constraints", len(f.constraints)))
	return f, nil
}

func walkSeconds(meters, speed float64) int {
	return int(math.Ceil(meters / speed))
}

// indexTransfers merges generated walks between nearby stops with transfers.txt.
// Explicit durations win over generated ones; not-possible transfers remove the walk.
func (f *Feed) indexTransfers(ctx context.Context, transfers []transferRow, opts FeedOptions) error {
	type pair struct{ from, to int }
	walks := make(map[pair]int)

	if opts.Nearby != nil && opts.MaxTransferDistance > 0 {
		for from, s := range f.stops {
			if !s.HasLocation {
				continue
			}
			nearby, err := opts.Nearby.NearbyStops(ctx, s.Lat, s.Lon, opts.MaxTransferDistance, 0)
			if err != nil {
				return fmt.Errorf("generating footpaths from %s: %w", s.ID, err)
			}
			for _, n := range nearby {
				to, ok := f.stopIndex[n.ID]
				if !ok || to == from {
					continue
				}
				walks[pair{from, to}] = walkSeconds(n.Distance, opts.WalkSpeed)
			}
		}
	}

	for _, tr := range transfers {
		from, okFrom := f.stopIndex[strings.TrimSpace(tr.FromStopID)]
		to, okTo := f.stopIndex[strings.TrimSpace(tr.ToStopID)]
		if !okFrom || !okTo {
			continue
		}
		p := pair{from, to}
		minTime := tr.minTime()

		switch tr.kind() {
		case transferNotPossible:
			delete(walks, p)
			f.constraints = append(f.constraints, raptor.ConstraintInput{
				FromStop: from, ToStop: to, Constraint: raptor.TransferConstraint{NotAllowed: true},
			})
			continue
		case transferTimed:
			f.constraints = append(f.constraints, raptor.ConstraintInput{
				FromStop: from, ToStop: to, Constraint: raptor.TransferConstraint{Guaranteed: true},
			})
		case transferMinTime:
			if from == to && minTime > 0 {
				f.constraints = append(f.constraints, raptor.ConstraintInput{
					FromStop: from, ToStop: to, Constraint: raptor.TransferConstraint{MinTransferTime: minTime},
				})
			}
		}

		if from == to {
			continue
		}
		d := minTime
		if d == 0 {
			d = walks[p]
			if d == 0 && f.stops[from].HasLocation && f.stops[to].HasLocation {
				d = walkSeconds(utils.Haversine(f.stops[from].Lat, f.stops[from].Lon, f.stops[to].Lat, f.stops[to].Lon), opts.WalkSpeed)
			}
		}
		walks[p] = d
	}

	f.footpaths = make([]raptor.Transfer, 0, len(walks))
	for p, d := range walks {
		f.footpaths = append(f.footpaths, raptor.Transfer{FromStop: p.from, ToStop: p.to, Duration: d})
	}
	return nil
}

func (f *Feed) NumberOfStops() int { return len(f.stops) }

func (f *Feed) Stop(index int) StopInfo { return f.stops[index] }

// StopIndex maps a GTFS stop id to its router index.
func (f *Feed) StopIndex(id string) (int, bool) {
	i, ok := f.stopIndex[id]
	return i, ok
}

// ChildStops returns the stops whose parent station is id.
func (f *Feed) ChildStops(id string) []int { return f.children[id] }

// Agency returns the agency with the given id.
func (f *Feed) Agency(id string) (gtfs.Agency, bool) {
	for _, a := range f.Static.Agencies {
		if a.Id == id {
			return a, true
		}
	}
	return gtfs.Agency{}, false
}

func (f *Feed) Route(id string) (RouteInfo, bool) {
	r, ok := f.routes[id]
	return r, ok
}

func (f *Feed) Trip(id string) (TripInfo, bool) {
	t, ok := f.trips[id]
	return t, ok
}

// Footpaths returns the walking transfers between stops.
func (f *Feed) Footpaths() []raptor.Transfer { return f.footpaths }

// Constraints returns the stop-level transfer constraints from transfers.txt.
func (f *Feed) Constraints() []raptor.ConstraintInput { return f.constraints }
