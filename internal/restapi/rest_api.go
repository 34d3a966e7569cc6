package restapi

import (
	"net/http"
	"time"

	"planner.onebusaway.org/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter
func NewRestAPI(app *app.Application) *RestAPI {
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(app.Config.Server.RateLimit, time.Second, app.Metrics),
	}
}

// Handler wraps the API routes in the middleware chain served by cmd/api.
func (api *RestAPI) Handler(extra ...func(mux *http.ServeMux)) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.rateLimiter.Handler(api.Routes()))
	if api.Metrics != nil {
		mux.Handle("GET /metrics", api.Metrics.Handler())
	}
	for _, register := range extra {
		register(mux)
	}

	var handler http.Handler = mux
	handler = CompressionMiddleware(handler)
	handler = securityHeaders(handler)
	handler = NewRequestLoggingMiddleware(api.Logger, api.Metrics)(handler)
	return handler
}

// Close releases the background resources of the API.
func (api *RestAPI) Close() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
