package models

type TripReference struct {
	ID           string `json:"id"`
	RouteID      string `json:"routeId"`
	ServiceID    string `json:"serviceId"`
	TripHeadsign string `json:"tripHeadsign"`
}
