package mesonet

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/mesonet-monitor/internal/domain"
	"github.com/couchcryptid/mesonet-monitor/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     discardLogger(),
	}
}

func TestClient_Stations_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, stationsPath, r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[
			{"station_id":"0115","name":"Piiholo","full_name":"Piʻiholo Ranch","lat":20.8,"lng":"-156.3","elevation":"640","status":"active"},
			{"station_id":"0521","name":"Kehena","lat":null,"lng":"","status":"Planned"}
		]`))
	}))
	defer srv.Close()

	stations, err := testClient(srv.URL).Stations(context.Background())
	require.NoError(t, err)

	require.Len(t, stations, 2)
	assert.Equal(t, domain.Station{
		ID: "0115", Name: "Piiholo", FullName: "Piʻiholo Ranch",
		Lat: 20.8, Lng: -156.3, Elevation: 640, Status: domain.StationActive,
	}, stations[0])
	assert.Equal(t, 0.0, stations[1].Lat)
	assert.Equal(t, domain.StationPlanned, stations[1].Status)
}

func TestClient_Measurements_Success(t *testing.T) {
	end := time.Date(2024, time.April, 26, 12, 0, 0, 0, domain.HST)
	window := domain.WindowEnding(end, 24*time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, measurementsPath, r.URL.Path)
		assert.Equal(t, "0115", q.Get("station_ids"))
		assert.Equal(t, "Tair_1_Avg,RF_1_Tot300s", q.Get("var_ids"))
		assert.Equal(t, "2024-04-25T12:00:00-10:00", q.Get("start_date"))
		assert.Equal(t, "2024-04-26T12:00:00-10:00", q.Get("end_date"))
		assert.Equal(t, "True", q.Get("local_tz"))
		assert.Equal(t, "100", q.Get("limit"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[
			{"station_id":"0115","variable":"Tair_1_Avg","value":"21.4","flag":0,"timestamp":"2024-04-26T11:55:00-10:00"},
			{"station_id":"0115","variable":"RF_1_Tot300s","value":null,"flag":1,"timestamp":"2024-04-26T11:55:00-10:00"}
		]`))
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).Measurements(context.Background(), domain.MeasurementQuery{
		StationIDs: []string{"0115"},
		Variables:  []string{"Tair_1_Avg", "RF_1_Tot300s"},
		Window:     window,
		Limit:      100,
	})
	require.NoError(t, err)

	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Value)
	assert.Equal(t, 21.4, *rows[0].Value)
	assert.Nil(t, rows[1].Value)
	assert.Equal(t, 1, rows[1].Flag)
}

func TestClient_Measurements_RejectsLongWindow(t *testing.T) {
	c := testClient("http://unused.invalid")
	now := time.Now()
	_, err := c.Measurements(context.Background(), domain.MeasurementQuery{
		Window: domain.Window{Start: now.Add(-domain.MaxWindow - time.Hour), End: now},
	})
	require.ErrorIs(t, err, domain.ErrDurationTooLong)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Stations(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Stations(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Measurements(context.Background(), domain.MeasurementQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Stations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stations response")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.Stations(context.Background())
	require.Error(t, err)
}

func TestClient_CancelledContext(t *testing.T) {
	c := testClient("http://unused.invalid")
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	c.limiter.Allow() // drain the bucket

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Stations(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	c := NewClient("https://api.example.org/", testToken, time.Second, 1, 1, observability.NewMetricsForTesting(), discardLogger())
	assert.Equal(t, "https://api.example.org", c.baseURL)
}
