package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/gtfs/gtfstest"
)

func newTestWebUI(t *testing.T) (*WebUI, *http.ServeMux) {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, loc)

	manager, err := gtfs.NewManagerFromBytes(gtfs.Config{
		GTFSDataPath:        ":memory:",
		Env:                 appconf.Test,
		MaxTransferDistance: 400,
		Now:                 func() time.Time { return now },
	}, gtfstest.Default().Zip(t), nil)
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	webUI := &WebUI{GtfsManager: manager}
	mux := http.NewServeMux()
	webUI.SetWebUIRoutes(mux)
	return webUI, mux
}

func TestDebugIndexHandler(t *testing.T) {
	_, mux := newTestWebUI(t)

	tests := []struct {
		dataType string
		title    string
		contains string
	}{
		{dataType: "", title: "Routing Snapshot", contains: "Patterns"},
		{dataType: "patterns", title: "Routing Snapshot - Patterns", contains: "R1"},
		{dataType: "footpaths", title: "Routing Snapshot - Footpaths", contains: "Duration"},
		{dataType: "agencies", title: "GTFS Static - Agencies", contains: "Test Transit"},
		{dataType: "delays", title: "GTFS Realtime - Trip Delays", contains: "map"},
		{dataType: "bogus", title: "Choose a data type", contains: "realtime_vehicles"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/debug/?dataType="+tt.dataType, nil))

			assert.Equal(t, http.StatusOK, recorder.Code)
			assert.Contains(t, recorder.Header().Get("Content-Type"), "text/html")
			body := recorder.Body.String()
			assert.Contains(t, body, "<h1>"+tt.title+"</h1>")
			assert.Contains(t, body, tt.contains)
		})
	}
}

func TestDebugIndexBeforeLoad(t *testing.T) {
	webUI := &WebUI{GtfsManager: &gtfs.Manager{}}
	recorder := httptest.NewRecorder()
	webUI.debugIndexHandler(recorder, httptest.NewRequest(http.MethodGet, "/debug/", nil))
	assert.Contains(t, recorder.Body.String(), "No data loaded")
}
