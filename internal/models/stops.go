package models

type Stop struct {
	Code               string   `json:"code"`
	Direction          string   `json:"direction"`
	ID                 string   `json:"id"`
	Lat                float64  `json:"lat"`
	LocationType       int      `json:"locationType"`
	Lon                float64  `json:"lon"`
	Name               string   `json:"name"`
	Parent             string   `json:"parent"`
	RouteIDs           []string `json:"routeIds"`
	WheelchairBoarding string   `json:"wheelchairBoarding"`
}

// WheelchairBoardingName maps the GTFS wheelchair_boarding value to its API name.
func WheelchairBoardingName(v int) string {
	switch v {
	case 1:
		return "ACCESSIBLE"
	case 2:
		return "NOT_ACCESSIBLE"
	default:
		return UnknownValue
	}
}
