package models

// Leg modes.
const (
	ModeWalk     = "WALK"
	ModeTransit  = "TRANSIT"
	ModeTransfer = "TRANSFER"
)

// Search statuses of a plan.
const (
	SearchOK             = "OK"
	SearchNoPathFound    = "NO_PATH_FOUND"
	SearchNoStopsInRange = "NO_STOPS_IN_RANGE"
)

// Place is an itinerary endpoint: a stop or a requested coordinate.
type Place struct {
	Name   string  `json:"name"`
	StopID string  `json:"stopId,omitempty"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

type Leg struct {
	Mode      string `json:"mode"`
	From      Place  `json:"from"`
	To        Place  `json:"to"`
	StartTime int64  `json:"startTime"` // epoch ms
	EndTime   int64  `json:"endTime"`
	Duration  int    `json:"duration"` // seconds
	Distance  int    `json:"distance,omitempty"`

	RouteID           string  `json:"routeId,omitempty"`
	RouteShortName    string  `json:"routeShortName,omitempty"`
	TripID            string  `json:"tripId,omitempty"`
	TripHeadsign      string  `json:"tripHeadsign,omitempty"`
	IntermediateStops []Place `json:"intermediateStops,omitempty"`

	// Geometry is an encoded polyline of the leg.
	Geometry  string `json:"geometry,omitempty"`
	Direction string `json:"direction,omitempty"`

	GuaranteedTransfer bool `json:"guaranteedTransfer,omitempty"`
}

type Itinerary struct {
	StartTime       int64 `json:"startTime"`
	EndTime         int64 `json:"endTime"`
	Duration        int   `json:"duration"`
	Transfers       int   `json:"transfers"`
	WalkTime        int   `json:"walkTime"`
	TransitTime     int   `json:"transitTime"`
	WaitingTime     int   `json:"waitingTime"`
	GeneralizedCost int   `json:"generalizedCost,omitempty"`
	Legs            []Leg `json:"legs"`
}

// SearchStats summarizes the routing work behind a plan.
type SearchStats struct {
	Iterations      int   `json:"iterations"`
	Rounds          int   `json:"rounds"`
	StopArrivals    int   `json:"stopArrivals"`
	DurationMs      int64 `json:"durationMs"`
	SnapshotVersion int64 `json:"snapshotVersion"`
}

type Plan struct {
	SearchID     string      `json:"searchId"`
	Date         int64       `json:"date"`
	ArriveBy     bool        `json:"arriveBy"`
	From         Place       `json:"from"`
	To           Place       `json:"to"`
	SearchStatus string      `json:"searchStatus"`
	Itineraries  []Itinerary `json:"itineraries"`
	Stats        SearchStats `json:"stats"`
}
