package models

type RouteType int

type Route struct {
	ID                string    `json:"id"`
	AgencyID          string    `json:"agencyId"`
	ShortName         string    `json:"shortName"`
	LongName          string    `json:"longName"`
	Type              RouteType `json:"type"`
	Color             string    `json:"color"`
	TextColor         string    `json:"textColor"`
	NullSafeShortName string    `json:"nullSafeShortName"`
}

func NewRoute(id, agencyID, shortName, longName string, routeType RouteType, color, textColor string) Route {
	nullSafe := shortName
	if nullSafe == "" {
		nullSafe = longName
	}
	return Route{
		ID:                id,
		AgencyID:          agencyID,
		ShortName:         shortName,
		LongName:          longName,
		Type:              routeType,
		Color:             color,
		TextColor:         textColor,
		NullSafeShortName: nullSafe,
	}
}
