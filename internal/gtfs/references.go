package gtfs

import (
	"planner.onebusaway.org/internal/models"
	"planner.onebusaway.org/internal/utils"
)

// StopModel is the API form of stop i, with combined ids and the routes serving it on this service day.
func (s *Snapshot) StopModel(i int) models.Stop {
	feed := s.Feed
	stop := feed.Stop(i)

	routeIDs := []string{}
	for _, rid := range s.RouteIDsForStop(i) {
		r, _ := feed.Route(rid)
		routeIDs = append(routeIDs, utils.FormCombinedID(r.AgencyID, rid))
	}
	return models.Stop{
		Code:               stop.Code,
		Direction:          s.StopDirection(i),
		ID:                 utils.FormCombinedID(feed.AgencyID, stop.ID),
		Lat:                stop.Lat,
		LocationType:       stop.LocationType,
		Lon:                stop.Lon,
		Name:               stop.Name,
		Parent:             utils.FormCombinedID(feed.AgencyID, stop.Parent),
		RouteIDs:           routeIDs,
		WheelchairBoarding: models.WheelchairBoardingName(stop.WheelchairBoarding),
	}
}

func (f *Feed) RouteModel(id string) (models.Route, bool) {
	r, ok := f.Route(id)
	if !ok {
		return models.Route{}, false
	}
	return models.NewRoute(utils.FormCombinedID(r.AgencyID, r.ID), r.AgencyID, r.ShortName, r.LongName,
		models.RouteType(r.Type), r.Color, r.TextColor), true
}

func (f *Feed) AgencyModel(id string) (models.AgencyReference, bool) {
	a, ok := f.Agency(id)
	if !ok {
		return models.AgencyReference{}, false
	}
	return models.AgencyReference{
		Email:    a.Email,
		FareUrl:  a.FareUrl,
		ID:       a.Id,
		Lang:     a.Language,
		Name:     a.Name,
		Phone:    a.Phone,
		Timezone: a.Timezone,
		URL:      a.Url,
	}, true
}

// AddStopReferences adds stop i, its routes and their agencies to refs.
func (s *Snapshot) AddStopReferences(refs *models.ReferencesModel, i int) models.Stop {
	stop := s.StopModel(i)
	refs.AddStop(stop)
	s.AddStopRouteReferences(refs, i)
	return stop
}

// AddStopRouteReferences adds the routes serving stop i and their agencies to refs.
func (s *Snapshot) AddStopRouteReferences(refs *models.ReferencesModel, i int) {
	for _, rid := range s.RouteIDsForStop(i) {
		s.Feed.addRouteReferences(refs, rid)
	}
}

func (f *Feed) addRouteReferences(refs *models.ReferencesModel, routeID string) {
	route, ok := f.RouteModel(routeID)
	if !ok {
		return
	}
	refs.AddRoute(route)
	if agency, ok := f.AgencyModel(route.AgencyID); ok {
		refs.AddAgency(agency)
	}
}

// AddTripReferences adds the trip, its route and agency to refs and returns the trip reference.
func (f *Feed) AddTripReferences(refs *models.ReferencesModel, tripID string) models.TripReference {
	info, _ := f.Trip(tripID)
	route, _ := f.Route(info.RouteID)
	trip := models.TripReference{
		ID:           utils.FormCombinedID(route.AgencyID, tripID),
		RouteID:      utils.FormCombinedID(route.AgencyID, info.RouteID),
		ServiceID:    utils.FormCombinedID(route.AgencyID, info.ServiceID),
		TripHeadsign: info.Headsign,
	}
	refs.AddTrip(trip)
	f.addRouteReferences(refs, info.RouteID)
	return trip
}
