package models

// AgencyCoverage represents the geographical coverage area of a transit agency
type AgencyCoverage struct {
	AgencyID string  `json:"agencyId"`
	Lat      float64 `json:"lat"`
	LatSpan  float64 `json:"latSpan"`
	Lon      float64 `json:"lon"`
	LonSpan  float64 `json:"lonSpan"`
}

// NewAgencyCoverage creates a new AgencyCoverage instance with the provided values
func NewAgencyCoverage(agencyID string, lat, latSpan, lon, lonSpan float64) AgencyCoverage {
	return AgencyCoverage{
		AgencyID: agencyID,
		Lat:      lat,
		LatSpan:  latSpan,
		Lon:      lon,
		LonSpan:  lonSpan,
	}
}

type AgencyReference struct {
	Email    string `json:"email"`
	FareUrl  string `json:"fareUrl"`
	ID       string `json:"id"`
	Lang     string `json:"lang"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
	URL      string `json:"url"`
}
