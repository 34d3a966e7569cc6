package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

const (
	defaultStopsRadius = 500
	maxStopsRadius     = 5000
	maxStopsResults    = 100
)

// stopsForLocationHandler lists the stops around a point, nearest first. These are the
// candidate access stops a plan from that point would consider.
func (api *RestAPI) stopsForLocationHandler(w http.ResponseWriter, r *http.Request) {
	queryParams := r.URL.Query()

	lat, hasLat, fieldErrors := utils.ParseFloatParam(queryParams, "lat", nil)
	lon, hasLon, fieldErrors := utils.ParseFloatParam(queryParams, "lon", fieldErrors)
	radius, hasRadius, fieldErrors := utils.ParseFloatParam(queryParams, "radius", fieldErrors)
	if fieldErrors == nil {
		fieldErrors = map[string][]string{}
	}
	if !hasLat || !hasLon {
		fieldErrors["location"] = append(fieldErrors["location"], "lat and lon are required")
	} else {
		fieldErrors = utils.ValidateLocation("lat", "lon", lat, lon, fieldErrors)
	}
	if !hasRadius || radius <= 0 {
		radius = defaultStopsRadius
	}
	if radius > maxStopsRadius {
		fieldErrors["radius"] = append(fieldErrors["radius"], "radius must be at most 5000 meters")
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	nearby, err := api.GtfsManager.GtfsDB.NearbyStops(r.Context(), lat, lon, radius, maxStopsResults+1)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	limitExceeded := len(nearby) > maxStopsResults
	if limitExceeded {
		nearby = nearby[:maxStopsResults]
	}

	references := models.NewEmptyReferences()
	stops := []models.Stop{}
	if snap := api.GtfsManager.Snapshot(); snap != nil {
		for _, n := range nearby {
			if idx, ok := snap.Feed.StopIndex(n.ID); ok {
				stops = append(stops, snap.StopModel(idx))
				snap.AddStopRouteReferences(&references, idx)
			}
		}
	}

	api.sendResponse(w, r, models.NewListResponse(stops, references, limitExceeded))
}
