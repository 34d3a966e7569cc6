package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/raptor"
	"planner.onebusaway.org/internal/routing"
	"planner.onebusaway.org/internal/utils"
)

// parseLocation reads {prefix}Stop, a combined stop id, or the {prefix}Lat/{prefix}Lon pair.
func parseLocation(params url.Values, prefix string, fieldErrors map[string][]string) (routing.Location, map[string][]string) {
	if combined := params.Get(prefix + "Stop"); combined != "" {
		_, stopID, err := utils.ExtractAgencyIDAndCodeID(combined)
		if err != nil {
			if fieldErrors == nil {
				fieldErrors = map[string][]string{}
			}
			fieldErrors[prefix+"Stop"] = append(fieldErrors[prefix+"Stop"], err.Error())
		}
		return routing.Location{StopID: stopID}, fieldErrors
	}

	lat, hasLat, fieldErrors := utils.ParseFloatParam(params, prefix+"Lat", fieldErrors)
	lon, hasLon, fieldErrors := utils.ParseFloatParam(params, prefix+"Lon", fieldErrors)
	if !hasLat || !hasLon {
		if fieldErrors == nil {
			fieldErrors = map[string][]string{}
		}
		if _, reported := fieldErrors[prefix+"Lat"]; !reported {
			fieldErrors[prefix] = append(fieldErrors[prefix],
				fmt.Sprintf("either %sStop or both %sLat and %sLon are required", prefix, prefix, prefix))
		}
	}
	return routing.Location{Lat: lat, Lon: lon}, fieldErrors
}

func (api *RestAPI) parsePlanRequest(params url.Values) (routing.PlanRequest, map[string][]string) {
	var fieldErrors map[string][]string
	var req routing.PlanRequest

	req.From, fieldErrors = parseLocation(params, "from", fieldErrors)
	req.To, fieldErrors = parseLocation(params, "to", fieldErrors)
	req.Time, fieldErrors = utils.ParseTimeParam(params, "time", time.Now(), api.GtfsManager.Location(), fieldErrors)
	req.ArriveBy, fieldErrors = utils.ParseBoolParam(params, "arriveBy", fieldErrors)

	var window, maxTransfers int
	var hasMaxTransfers bool
	window, _, fieldErrors = utils.ParseIntParam(params, "window", fieldErrors)
	req.SearchWindow = time.Duration(window) * time.Minute
	maxTransfers, hasMaxTransfers, fieldErrors = utils.ParseIntParam(params, "maxTransfers", fieldErrors)
	if hasMaxTransfers {
		req.MaxTransfers = &maxTransfers
	}
	req.NumItineraries, _, fieldErrors = utils.ParseIntParam(params, "numItineraries", fieldErrors)
	req.WalkSpeed, _, fieldErrors = utils.ParseFloatParam(params, "walkSpeed", fieldErrors)
	req.MaxWalkDistance, _, fieldErrors = utils.ParseFloatParam(params, "maxWalkDistance", fieldErrors)
	req.Optimize = utils.SanitizeInput(params.Get("optimize"))

	return req, fieldErrors
}

// planTripHandler plans itineraries between two stops or coordinates. The window is in minutes
// and time is epoch milliseconds or RFC 3339, defaulting to now.
func (api *RestAPI) planTripHandler(w http.ResponseWriter, r *http.Request) {
	req, fieldErrors := api.parsePlanRequest(r.URL.Query())
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	result, err := api.Planner.Plan(r.Context(), req)
	if err != nil {
		api.planErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, models.NewEntryResponse(result.Plan, result.References))
}

// planErrorResponse maps a planner error to its HTTP status.
func (api *RestAPI) planErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var verr *routing.ValidationError
	switch {
	case errors.As(err, &verr):
		api.validationErrorResponse(w, r, verr.FieldErrors)
	case errors.Is(err, raptor.ErrInvalidRequest):
		api.validationErrorResponse(w, r, map[string][]string{"request": {err.Error()}})
	case errors.Is(err, routing.ErrUnknownStop):
		api.sendNotFound(w, r)
	case errors.Is(err, routing.ErrNoSnapshot),
		errors.Is(err, raptor.ErrAborted),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		api.serviceUnavailableResponse(w, r, err)
	default:
		api.serverErrorResponse(w, r, err)
	}
}
