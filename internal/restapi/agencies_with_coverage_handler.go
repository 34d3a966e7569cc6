package restapi

import (
	"net/http"

	"planner.onebusaway.org/internal/models"
)

func (api *RestAPI) agenciesWithCoverageHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.Context().Err(); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	references := models.NewEmptyReferences()
	coverage := []models.AgencyCoverage{}

	if feed := api.GtfsManager.Feed(); feed != nil {
		bounds := feed.Bounds
		lat, lon := bounds.Center()
		for _, a := range feed.Static.Agencies {
			coverage = append(coverage, models.NewAgencyCoverage(a.Id, lat, bounds.MaxLat-bounds.MinLat, lon, bounds.MaxLon-bounds.MinLon))
			if ref, ok := feed.AgencyModel(a.Id); ok {
				references.AddAgency(ref)
			}
		}
	}

	api.sendResponse(w, r, models.NewListResponse(coverage, references, false))
}
