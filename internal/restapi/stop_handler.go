package restapi

import (
	"errors"
	"net/http"

	"planner.onebusaway.org/gtfsdb"
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

func (api *RestAPI) stopHandler(w http.ResponseWriter, r *http.Request) {
	queryParamID := utils.ExtractIDFromParams(r, "id")

	if err := utils.ValidateID(queryParamID); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	_, stopID, err := utils.ExtractAgencyIDAndCodeID(queryParamID)
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	stop, err := api.GtfsManager.GtfsDB.GetStop(r.Context(), stopID)
	if errors.Is(err, gtfsdb.ErrNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	snap := api.GtfsManager.Snapshot()
	if snap == nil {
		api.sendNotFound(w, r)
		return
	}
	idx, ok := snap.Feed.StopIndex(stop.ID)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	references := models.NewEmptyReferences()
	entry := snap.StopModel(idx)
	snap.AddStopRouteReferences(&references, idx)

	api.sendResponse(w, r, models.NewEntryResponse(entry, references))
}
