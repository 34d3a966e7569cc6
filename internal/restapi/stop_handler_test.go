package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopHandlerEndToEnd(t *testing.T) {
	api := createTestApi(t)
	resp, model := serveAndRetrieveEndpoint(t, api, "/api/where/stop/40_B?key=TEST")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := model.Data.(map[string]interface{})
	entry := data["entry"].(map[string]interface{})
	assert.Equal(t, "40_B", entry["id"])
	assert.Equal(t, "Bravo", entry["name"])
	assert.Equal(t, "1002", entry["code"])
	assert.Equal(t, "N", entry["direction"])
	assert.Equal(t, []interface{}{"40_R1"}, entry["routeIds"])
	assert.Equal(t, "UNKNOWN", entry["wheelchairBoarding"])

	refs := data["references"].(map[string]interface{})
	routes := refs["routes"].([]interface{})
	require.Len(t, routes, 1)
	assert.Equal(t, "North Line", routes[0].(map[string]interface{})["longName"])
	assert.Len(t, refs["agencies"], 1)
	assert.Empty(t, refs["stops"])
}

func TestStopHandlerErrors(t *testing.T) {
	api := createTestApi(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "unknown stop", path: "/api/where/stop/40_Z?key=TEST", status: http.StatusNotFound},
		{name: "missing agency", path: "/api/where/stop/B?key=TEST", status: http.StatusBadRequest},
		{name: "invalid key", path: "/api/where/stop/40_B?key=nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serveRequest(t, api, newGet(tt.path))
			defer resp.Body.Close() // nolint:errcheck
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStopsForLocationHandler(t *testing.T) {
	api := createTestApi(t)
	resp, model := serveAndRetrieveEndpoint(t, api, "/api/where/stops-for-location.json?key=TEST&lat=47.61&lon=-122.33&radius=200")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := model.Data.(map[string]interface{})
	list := data["list"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "40_B", list[0].(map[string]interface{})["id"])
	assert.Equal(t, "40_D", list[1].(map[string]interface{})["id"])
	assert.Equal(t, false, data["limitExceeded"])
	assert.Len(t, data["references"].(map[string]interface{})["routes"], 2)
}

func TestStopsForLocationHandlerValidation(t *testing.T) {
	api := createTestApi(t)

	resp := serveRequest(t, api, newGet("/api/where/stops-for-location.json?key=TEST&lon=-122.33"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeFieldErrors(t, resp), "location")

	resp = serveRequest(t, api, newGet("/api/where/stops-for-location.json?key=TEST&lat=47.61&lon=-122.33&radius=9000"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeFieldErrors(t, resp), "radius")
}

func TestAgenciesWithCoverageHandlerEndToEnd(t *testing.T) {
	api := createTestApi(t)
	resp, model := serveAndRetrieveEndpoint(t, api, "/api/where/agencies-with-coverage.json?key=TEST")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := model.Data.(map[string]interface{})
	list := data["list"].([]interface{})
	require.Len(t, list, 1)

	coverage := list[0].(map[string]interface{})
	assert.Equal(t, "40", coverage["agencyId"])
	assert.InDelta(t, 47.65, coverage["lat"], 1e-6)
	assert.InDelta(t, 0.1, coverage["latSpan"], 1e-6)
	assert.InDelta(t, -122.355, coverage["lon"], 1e-6)
	assert.InDelta(t, 0.09, coverage["lonSpan"], 1e-6)

	agencies := data["references"].(map[string]interface{})["agencies"].([]interface{})
	require.Len(t, agencies, 1)
	agency := agencies[0].(map[string]interface{})
	assert.Equal(t, "Test Transit", agency["name"])
	assert.Equal(t, "America/Los_Angeles", agency["timezone"])
}

func TestCurrentTimeHandler(t *testing.T) {
	api := createTestApi(t)
	resp, model := serveAndRetrieveEndpoint(t, api, "/api/where/current-time.json?key=TEST")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := model.Data.(map[string]interface{})["entry"].(map[string]interface{})
	assert.InDelta(t, model.CurrentTime, entry["time"], 1000)
	assert.NotEmpty(t, entry["readableTime"])
}

func TestUnknownEndpoint(t *testing.T) {
	api := createTestApi(t)
	resp, model := serveAndRetrieveEndpoint(t, api, "/api/where/nothing-here.json?key=TEST")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, model.Code)
}
