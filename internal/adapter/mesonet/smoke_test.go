//go:build mesonet

package mesonet

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

// These tests hit the live Mesonet API and require MESONET_API_TOKEN.
// Run with: go test -tags=mesonet ./internal/adapter/mesonet/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MESONET_API_TOKEN")
	if token == "" {
		t.Fatal("MESONET_API_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.hcdp.ikewai.org",
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     discardLogger(),
	}
}

func TestSmoke_Stations(t *testing.T) {
	c := smokeClient(t)

	stations, err := c.Stations(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, stations)

	for _, s := range stations {
		assert.NoError(t, domain.ValidateStationID(s.ID), "station %q", s.ID)
	}
}

func TestSmoke_Measurements(t *testing.T) {
	c := smokeClient(t)

	rows, err := c.Measurements(context.Background(), domain.MeasurementQuery{
		StationIDs: []string{"0115"},
		Variables:  []string{"Tair_1_Avg"},
		Window:     domain.WindowEnding(time.Now(), 6*time.Hour),
		Limit:      200,
	})
	require.NoError(t, err)

	for _, r := range rows {
		assert.Equal(t, "0115", r.StationID)
		assert.Equal(t, "Tair_1_Avg", r.Variable)
	}
}
