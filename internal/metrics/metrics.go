package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the planner's Prometheus metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	Searches         *prometheus.CounterVec // outcome label: ok|no_path|invalid|aborted|error
	SearchDuration   *prometheus.HistogramVec
	SearchIterations prometheus.Histogram
	ItinerariesFound prometheus.Histogram

	SnapshotVersion prometheus.Gauge
	SnapshotAge     prometheus.GaugeFunc
	SnapshotBuilds  prometheus.Counter
	DelayedTrips    prometheus.Gauge
	Patterns        prometheus.Gauge

	NearbyCacheHits   prometheus.Counter
	NearbyCacheMisses prometheus.Counter

	HTTPRequests *prometheus.CounterVec // code label
	RateLimited  prometheus.Counter

	snapshotBuiltAt func() time.Time
	lastVersion     atomic.Uint64
}

// NewCollector creates the metrics. snapshotBuiltAt reports when the current snapshot was
// built; it may be nil.
func NewCollector(snapshotBuiltAt func() time.Time) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg:             reg,
		snapshotBuiltAt: snapshotBuiltAt,
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_searches_total",
			Help: "Routing searches by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_search_duration_seconds",
			Help:    "Duration of routing searches, heuristics included.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"profile"}),
		SearchIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_iterations",
			Help:    "Range-raptor iterations per search.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ItinerariesFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_itineraries_found",
			Help:    "Itineraries returned per search.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		SnapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_snapshot_version",
			Help: "Version of the routing snapshot used by the last search.",
		}),
		SnapshotBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_snapshot_builds_observed_total",
			Help: "Snapshot versions observed by searches.",
		}),
		DelayedTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_snapshot_delayed_trips",
			Help: "Trips with realtime delays in the current snapshot.",
		}),
		Patterns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_snapshot_patterns",
			Help: "Patterns in the current snapshot.",
		}),
		NearbyCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nearby_cache_hits_total",
			Help: "Access/egress stop lookups served from cache.",
		}),
		NearbyCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nearby_cache_misses_total",
			Help: "Access/egress stop lookups that queried the stop index.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_http_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"code"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
	c.SnapshotAge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_snapshot_age_seconds",
		Help: "Seconds since the current snapshot was built.",
	}, c.snapshotAge)

	reg.MustRegister(
		c.Searches, c.SearchDuration, c.SearchIterations, c.ItinerariesFound,
		c.SnapshotVersion, c.SnapshotAge, c.SnapshotBuilds, c.DelayedTrips, c.Patterns,
		c.NearbyCacheHits, c.NearbyCacheMisses,
		c.HTTPRequests, c.RateLimited,
	)

	return c
}

func (c *Collector) snapshotAge() float64 {
	if c.snapshotBuiltAt == nil {
		return 0
	}
	builtAt := c.snapshotBuiltAt()
	if builtAt.IsZero() {
		return 0
	}
	return time.Since(builtAt).Seconds()
}

// ObserveSnapshot records the snapshot a search ran against.
func (c *Collector) ObserveSnapshot(version uint64, patterns, delayedTrips int) {
	if c.lastVersion.Swap(version) != version {
		c.SnapshotBuilds.Inc()
	}
	c.SnapshotVersion.Set(float64(version))
	c.Patterns.Set(float64(patterns))
	c.DelayedTrips.Set(float64(delayedTrips))
}

// ObserveSearch records one finished search.
func (c *Collector) ObserveSearch(profile, outcome string, d time.Duration, iterations, itineraries int) {
	c.Searches.WithLabelValues(outcome).Inc()
	c.SearchDuration.WithLabelValues(profile).Observe(d.Seconds())
	if outcome == "ok" || outcome == "no_path" {
		c.SearchIterations.Observe(float64(iterations))
		c.ItinerariesFound.Observe(float64(itineraries))
	}
}

// Registry exposes the registry for tests and for adding collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }
