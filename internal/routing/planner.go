package routing

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/metrics"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/raptor"
)

const defaultNumItineraries = 5

// SnapshotSource hands out the routing snapshot for a point in time. gtfs.Manager implements it.
type SnapshotSource interface {
	SnapshotFor(ctx context.Context, t time.Time) (*gtfs.Snapshot, error)
}

// Planner answers plan requests against the current snapshot. It is safe for concurrent use.
type Planner struct {
	source    SnapshotSource
	stops     gtfs.StopFinder
	config    appconf.RoutingConfig
	logger    *slog.Logger
	metrics   *metrics.Collector
	nearby    gcache.Cache
	validator *validator.Validate
}

// NewPlanner creates a planner. collector may be nil.
func NewPlanner(source SnapshotSource, stops gtfs.StopFinder, config appconf.RoutingConfig, logger *slog.Logger, collector *metrics.Collector) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	size := config.NearbyCacheSize
	if size <= 0 {
		size = 10000
	}
	return &Planner{
		source:    source,
		stops:     stops,
		config:    config,
		logger:    logger.With(slog.String("component", "planner")),
		metrics:   collector,
		nearby:    gcache.New(size).LRU().Build(),
		validator: newValidator(),
	}
}

// PlanResult is a plan together with the entities its itineraries reference.
type PlanResult struct {
	Plan       models.Plan
	References models.ReferencesModel
}

type searchOptions struct {
	profile         raptor.Profile
	walkSpeed       float64
	maxWalkDistance float64
	numItineraries  int
}

func (p *Planner) options(req PlanRequest) searchOptions {
	o := searchOptions{
		profile:         raptor.StandardProfile,
		walkSpeed:       cmp.Or(req.WalkSpeed, p.config.WalkSpeed, 1.33),
		maxWalkDistance: cmp.Or(req.MaxWalkDistance, p.config.MaxWalkDistance, 1000),
		numItineraries:  cmp.Or(req.NumItineraries, defaultNumItineraries),
	}
	if req.Optimize == OptimizeMulti {
		o.profile = raptor.MultiCriteriaProfile
	}
	return o
}

func seconds(d time.Duration) int { return int(d / time.Second) }

// Plan searches itineraries for req. Validation failures return a *ValidationError;
// a search without results is not an error and reports models.SearchNoPathFound.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	start := time.Now()
	opts := p.options(req)

	result, stats, err := p.plan(ctx, req, opts)

	outcome := "ok"
	switch {
	case errors.Is(err, raptor.ErrInvalidRequest), errors.Is(err, ErrUnknownStop):
		outcome = "invalid"
	case errors.Is(err, raptor.ErrAborted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "aborted"
	case err != nil:
		outcome = "error"
	case result.Plan.SearchStatus != models.SearchOK:
		outcome = "no_path"
	}
	if p.metrics != nil {
		itineraries := 0
		if result != nil {
			itineraries = len(result.Plan.Itineraries)
		}
		p.metrics.ObserveSearch(opts.profile.String(), outcome, time.Since(start), stats.Iterations, itineraries)
	}
	return result, err
}

func (p *Planner) plan(ctx context.Context, req PlanRequest, opts searchOptions) (*PlanResult, raptor.Stats, error) {
	if err := p.validate(req); err != nil {
		return nil, raptor.Stats{}, err
	}

	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	snap, err := p.source.SnapshotFor(ctx, req.Time)
	if errors.Is(err, gtfs.ErrNoData) {
		return nil, raptor.Stats{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, raptor.Stats{}, fmt.Errorf("loading snapshot: %w", err)
	}
	if p.metrics != nil {
		p.metrics.ObserveSnapshot(snap.Version, snap.Data.NumberOfPatterns(), snap.DelayedTrips)
	}

	searchID := uuid.NewString()
	logger := p.logger.With(slog.String("search_id", searchID))

	result := &PlanResult{
		Plan: models.Plan{
			SearchID:     searchID,
			Date:         req.Time.UnixMilli(),
			ArriveBy:     req.ArriveBy,
			From:         p.place(snap, req.From, "Origin"),
			To:           p.place(snap, req.To, "Destination"),
			SearchStatus: models.SearchOK,
			Itineraries:  []models.Itinerary{},
			Stats:        models.SearchStats{SnapshotVersion: int64(snap.Version)},
		},
		References: models.NewEmptyReferences(),
	}

	access, err := p.accessEgress(ctx, snap, req.From, opts)
	if err != nil {
		return nil, raptor.Stats{}, fmt.Errorf("from: %w", err)
	}
	egress, err := p.accessEgress(ctx, snap, req.To, opts)
	if err != nil {
		return nil, raptor.Stats{}, fmt.Errorf("to: %w", err)
	}
	if len(access.legs) == 0 || len(egress.legs) == 0 {
		result.Plan.SearchStatus = models.SearchNoStopsInRange
		return result, raptor.Stats{}, nil
	}

	rreq := raptor.Request{
		Profile:              opts.profile,
		SearchWindow:         seconds(cmp.Or(req.SearchWindow, p.config.SearchWindow)),
		MaxNumberOfTransfers: p.config.MaxTransfers,
		Access:               access.legs,
		Egress:               egress.legs,
		Slack: raptor.Slack{
			Board:    seconds(p.config.BoardSlack),
			Alight:   seconds(p.config.AlightSlack),
			Transfer: seconds(p.config.TransferSlack),
		},
	}
	if req.MaxTransfers != nil {
		rreq.MaxNumberOfTransfers = *req.MaxTransfers
	}
	t := snap.SecondsOf(req.Time)
	if req.ArriveBy {
		rreq.Direction = raptor.Reverse
		rreq.LatestArrivalTime = t
	} else {
		rreq.Direction = raptor.Forward
		rreq.EarliestDepartureTime = t
	}

	router := raptor.NewRouter(snap.Data, p.logger)
	if p.config.Heuristics {
		h, err := router.Heuristics(ctx, rreq)
		if err != nil {
			return nil, raptor.Stats{}, err
		}
		rreq.Heuristics = h
	}

	resp, err := router.Route(ctx, rreq)
	if err != nil {
		return nil, raptor.Stats{}, err
	}

	paths := slices.Clone(resp.Paths)
	slices.SortFunc(paths, func(a, b *raptor.Path) int {
		if req.ArriveBy {
			return cmp.Or(cmp.Compare(b.StartTime, a.StartTime), cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers))
		}
		return cmp.Or(cmp.Compare(a.EndTime, b.EndTime), cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers))
	})
	if len(paths) > opts.numItineraries {
		paths = paths[:opts.numItineraries]
	}

	m := &itineraryMapper{
		snap:      snap,
		fromPlace: result.Plan.From,
		toPlace:   result.Plan.To,
		access:    access,
		egress:    egress,
		refs:      &result.References,
	}
	for _, path := range paths {
		result.Plan.Itineraries = append(result.Plan.Itineraries, m.itinerary(path))
	}
	if len(result.Plan.Itineraries) == 0 {
		result.Plan.SearchStatus = models.SearchNoPathFound
	}
	result.Plan.Stats = models.SearchStats{
		Iterations:      resp.Stats.Iterations,
		Rounds:          resp.Stats.Rounds,
		StopArrivals:    resp.Stats.StopArrivals,
		DurationMs:      resp.Stats.Duration.Milliseconds(),
		SnapshotVersion: int64(snap.Version),
	}

	logging.LogOperation(logger, "plan_completed",
		slog.String("status", result.Plan.SearchStatus),
		slog.String("profile", opts.profile.String()),
		slog.Bool("arrive_by", req.ArriveBy),
		slog.Int("access_stops", len(access.legs)),
		slog.Int("egress_stops", len(egress.legs)),
		slog.Int("itineraries", len(result.Plan.Itineraries)),
		slog.Int("iterations", resp.Stats.Iterations),
		slog.Duration("duration", resp.Stats.Duration))

	return result, resp.Stats, nil
}
