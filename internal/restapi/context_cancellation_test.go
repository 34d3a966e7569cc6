package restapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextCancellationHandling(t *testing.T) {
	api := createTestApi(t)
	handler := api.Handler()

	tests := []struct {
		name     string
		endpoint string
		statuses []int
	}{
		{
			name:     "plan trip reports an aborted search",
			endpoint: "/api/where/plan-trip.json?key=TEST&fromStop=40_A&toStop=40_E&time=" + millis(at(t, 7, 55)),
			statuses: []int{http.StatusServiceUnavailable},
		},
		{
			name:     "agencies with coverage fails fast",
			endpoint: "/api/where/agencies-with-coverage.json?key=TEST",
			statuses: []int{http.StatusInternalServerError},
		},
		{
			name:     "stops for location",
			endpoint: "/api/where/stops-for-location.json?key=TEST&lat=47.61&lon=-122.33",
			statuses: []int{http.StatusOK, http.StatusInternalServerError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			req := httptest.NewRequest(http.MethodGet, tt.endpoint, nil).WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Contains(t, tt.statuses, w.Code)
		})
	}
}

func TestLongerTimeoutContextHandling(t *testing.T) {
	api := createTestApi(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/where/plan-trip.json?key=TEST&fromStop=40_A&toStop=40_C&time="+millis(at(t, 7, 55)), nil).WithContext(ctx)

	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
