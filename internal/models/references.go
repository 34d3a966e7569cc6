package models

import "slices"

// ReferencesModel References model for related data
type ReferencesModel struct {
	Agencies []AgencyReference `json:"agencies"`
	Routes   []Route           `json:"routes"`
	Stops    []Stop            `json:"stops"`
	Trips    []TripReference   `json:"trips"`
}

// NewEmptyReferences creates a new empty References model with initialized empty slices
func NewEmptyReferences() ReferencesModel {
	return ReferencesModel{
		Agencies: []AgencyReference{},
		Routes:   []Route{},
		Stops:    []Stop{},
		Trips:    []TripReference{},
	}
}

// AddRoute appends the route unless one with the same id is already referenced.
func (r *ReferencesModel) AddRoute(route Route) {
	if !slices.ContainsFunc(r.Routes, func(x Route) bool { return x.ID == route.ID }) {
		r.Routes = append(r.Routes, route)
	}
}

func (r *ReferencesModel) AddStop(stop Stop) {
	if !slices.ContainsFunc(r.Stops, func(x Stop) bool { return x.ID == stop.ID }) {
		r.Stops = append(r.Stops, stop)
	}
}

func (r *ReferencesModel) AddTrip(trip TripReference) {
	if !slices.ContainsFunc(r.Trips, func(x TripReference) bool { return x.ID == trip.ID }) {
		r.Trips = append(r.Trips, trip)
	}
}

func (r *ReferencesModel) AddAgency(agency AgencyReference) {
	if !slices.ContainsFunc(r.Agencies, func(x AgencyReference) bool { return x.ID == agency.ID }) {
		r.Agencies = append(r.Agencies, agency)
	}
}
