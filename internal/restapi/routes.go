package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func validateAPIKey(api *RestAPI, finalHandler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

// Routes returns the router for the /api/where endpoints.
func (api *RestAPI) Routes() *httprouter.Router {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/api/where/plan-trip.json", validateAPIKey(api, api.planTripHandler))
	router.Handler(http.MethodGet, "/api/where/stop/:id", validateAPIKey(api, api.stopHandler))
	router.Handler(http.MethodGet, "/api/where/stops-for-location.json", validateAPIKey(api, api.stopsForLocationHandler))
	router.Handler(http.MethodGet, "/api/where/agencies-with-coverage.json", validateAPIKey(api, api.agenciesWithCoverageHandler))
	router.Handler(http.MethodGet, "/api/where/current-time.json", validateAPIKey(api, api.currentTimeHandler))
	router.NotFound = http.HandlerFunc(api.sendNotFound)
	return router
}
