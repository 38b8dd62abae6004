package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/config"
	"firmpulse/internal/operations"
	"firmpulse/internal/services"
	"firmpulse/internal/websocket"
)

type noopStep struct{ id string }

func (s *noopStep) ID() string   { return s.id }
func (s *noopStep) Name() string { return s.id }
func (s *noopStep) Run(ctx context.Context, state *operations.RunState) error {
	state.Artifacts.AnalysisRows = []aggregate.AnalysisRow{
		{Country: "DEU", Year: 2020, Metrics: map[string]aggregate.Cell{
			"roic": {Mean: 0.12, NFirms: 5},
		}},
		{Country: "FRA", Year: 2020, Metrics: map[string]aggregate.Cell{
			"roic": {Mean: 0.09, NFirms: 4},
		}},
	}
	state.Artifacts.CountryResults = []operations.CountryResult{
		{Country: "DEU", Metric: "roic", Years: []int{2019, 2020}, LastYear: 2020},
	}
	state.Artifacts.ReportFiles = []string{"/reports/summary.rtf"}
	return nil
}

func testServer(t *testing.T) (*Server, *services.AnalysisService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := operations.NewManager([]operations.Step{&noopStep{id: "noop"}}, nil, logger)
	service := services.NewAnalysisService(manager, logger)

	hub := websocket.NewHub(logger)
	hub.Start()
	t.Cleanup(hub.Shutdown)

	cfg := config.ServerConfig{
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     5 * time.Second,
		ShutdownTimeout: time.Second,
	}
	return NewServer(cfg, service, hub, "test", logger), service
}

func seedLatest(t *testing.T, service *services.AnalysisService) {
	t.Helper()
	state := operations.NewRunState("seed")
	require.NoError(t, (&noopStep{}).Run(context.Background(), state))
	state.Complete()
	service.SetLatest(state)
}

func doRequest(t *testing.T, handler http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestGetHealth(t *testing.T) {
	server, _ := testServer(t)

	rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestGetCountries(t *testing.T) {
	server, service := testServer(t)
	seedLatest(t, service)

	rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
}

func TestGetCountries_NoRunYet(t *testing.T) {
	server, _ := testServer(t)

	rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["detail"], "completed analysis run")
}

func TestGetCountryRows(t *testing.T) {
	server, service := testServer(t)
	seedLatest(t, service)

	rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries/DEU/rows")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DEU", body["country"])
	assert.EqualValues(t, 1, body["count"])
}

func TestGetCountryRows_UnknownCountry(t *testing.T) {
	server, service := testServer(t)
	seedLatest(t, service)

	rec, _ := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries/XX/rows")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCountryRows_InvalidCountryParam(t *testing.T) {
	server, service := testServer(t)
	seedLatest(t, service)

	rec, _ := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries/X/rows")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCountryModel(t *testing.T) {
	server, service := testServer(t)
	seedLatest(t, service)

	rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries/DEU/model")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DEU", body["country"])
	assert.Equal(t, "roic", body["metric"])
}

func TestAnalysisEndpoints_MissingValuesEncodeAsNull(t *testing.T) {
	server, service := testServer(t)

	// Rows shaped the way the macro merge leaves them: unmatched
	// covariates and thin cells carry NaN, and the country series has
	// NaN where a cell was dropped.
	state := operations.NewRunState("seed")
	state.Artifacts.AnalysisRows = []aggregate.AnalysisRow{
		{Country: "DEU", Year: 2020,
			Metrics: map[string]aggregate.Cell{
				"roic": {Country: "DEU", Year: 2020, Metric: "roic", Mean: 0.12, StdDev: math.NaN(), NFirms: 1},
			},
			MacroValue: math.NaN(), Gini: math.NaN(), GDPPerCapita: math.NaN()},
	}
	state.Artifacts.CountryResults = []operations.CountryResult{
		{Country: "DEU", Metric: "roic", Years: []int{2019, 2020},
			Values: []float64{math.NaN(), 0.12}, LastYear: 2020},
	}
	state.Complete()
	service.SetLatest(state)

	rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries/DEU/rows")
	require.Equal(t, http.StatusOK, rec.Code)
	row := body["rows"].([]interface{})[0].(map[string]interface{})
	assert.Nil(t, row["macro_value"])
	assert.Nil(t, row["gini"])
	assert.Nil(t, row["gdp_per_capita"])
	cell := row["metrics"].(map[string]interface{})["roic"].(map[string]interface{})
	assert.Equal(t, 0.12, cell["mean"])
	assert.Nil(t, cell["std_dev"])

	rec, body = doRequest(t, server.Handler(), http.MethodGet, "/api/analysis/countries/DEU/model")
	require.Equal(t, http.StatusOK, rec.Code)
	values, ok := body["values"].([]interface{})
	require.True(t, ok)
	require.Len(t, values, 2)
	assert.Nil(t, values[0])
	assert.Equal(t, 0.12, values[1])
}

func TestStartAndGetRun(t *testing.T) {
	server, _ := testServer(t)

	rec, body := doRequest(t, server.Handler(), http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, rec.Code)
	runID, ok := body["run_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, runID)

	// The noop run finishes quickly; poll until completed
	require.Eventually(t, func() bool {
		rec, body := doRequest(t, server.Handler(), http.MethodGet, "/api/runs/"+runID)
		return rec.Code == http.StatusOK && body["status"] == string(operations.RunStatusCompleted)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetRun_NotFound(t *testing.T) {
	server, _ := testServer(t)

	rec, _ := doRequest(t, server.Handler(), http.MethodGet, "/api/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := testServer(t)

	doRequest(t, server.Handler(), http.MethodGet, "/api/health")

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "firmpulse_http_requests_total")
}

func TestRequestIDHeaderPropagated(t *testing.T) {
	server, _ := testServer(t)

	rec, _ := doRequest(t, server.Handler(), http.MethodGet, "/api/health")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
