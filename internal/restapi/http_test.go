package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"planner.onebusaway.org/internal/app"
	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/gtfs"
	"planner.onebusaway.org/internal/gtfs/gtfstest"
	"planner.onebusaway.org/internal/logging"
	"planner.onebusaway.org/internal/models"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

// at is a time on the service day the test feed is loaded for.
func at(t *testing.T, hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, losAngeles(t))
}

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// createTestApi creates a RestAPI over the in-memory test feed.
func createTestApi(t *testing.T, configure ...func(*appconf.Config)) *RestAPI {
	t.Helper()
	cfg := appconf.Default()
	cfg.Server.Env = appconf.Test
	cfg.Server.APIKeys = []string{"TEST"}
	for _, c := range configure {
		c(&cfg)
	}

	now := at(t, 7, 0)
	gtfsConfig := app.GtfsConfigFrom(cfg)
	gtfsConfig.GTFSDataPath = ":memory:"
	gtfsConfig.Now = func() time.Time { return now }

	manager, err := gtfs.NewManagerFromBytes(gtfsConfig, gtfstest.Default().Zip(t), nil)
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)

	api := NewRestAPI(app.New(cfg, gtfsConfig, manager, slog.New(slog.DiscardHandler)))
	t.Cleanup(api.Close)
	return api
}

func serveRequest(t *testing.T, api *RestAPI, req *http.Request) *http.Response {
	t.Helper()
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	req.URL.Scheme = "http"
	req.URL.Host = server.Listener.Addr().String()
	req.RequestURI = ""
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// serveAndRetrieveEndpoint makes a GET request to endpoint and decodes the response envelope.
func serveAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()
	resp := serveRequest(t, api, newGet(endpoint))
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "test")),
		"http_response_body")

	var response models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	return resp, response
}

func decodeFieldErrors(t *testing.T, resp *http.Response) map[string][]string {
	t.Helper()
	defer resp.Body.Close() // nolint:errcheck
	var body struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.FieldErrors
}

func newGet(endpoint string) *http.Request {
	return httptest.NewRequest(http.MethodGet, endpoint, nil)
}
