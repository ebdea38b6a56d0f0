package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/pkg/cache"
	xlogger "PriceCast/pkg/logger"
)

type fakeService struct {
	calls []string
	days  []int
	res   models.ForecastResult
}

func (f *fakeService) ForecastSymbol(_ context.Context, symbol string, days int) models.ForecastResult {
	f.calls = append(f.calls, symbol)
	f.days = append(f.days, days)
	if !f.res.Success {
		return f.res
	}
	r := f.res
	r.Symbol = symbol
	return r
}

type fakeAdmin struct {
	status   models.ModelStatus
	started  []string
	refusing bool
}

func (a *fakeAdmin) StartTraining(reason string, _ bool) bool {
	if a.refusing {
		return false
	}
	a.started = append(a.started, reason)
	return true
}

func (a *fakeAdmin) Status() models.ModelStatus { return a.status }

func okResult() models.ForecastResult {
	p := 101.0
	return models.ForecastResult{
		Success:  true,
		Forecast: &models.ForecastSeries{Dates: []string{"2026-01-04"}, Prices: []float64{103}},
		Historical: &models.HistoricalSeries{
			Dates:       []string{"2026-01-02", "2026-01-03"},
			Prices:      []float64{100, 102},
			Predictions: []*float64{nil, &p},
		},
		Metrics: &models.ForecastMetrics{Accuracy: 97.5, Confidence: 95, RMSE: 1},
	}
}

func newTestServer(svc ForecastService, admin ModelAdmin, c cache.Service, limiter *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewForecastEchoHandler(xlogger.Nop(), svc, admin, c, time.Minute, limiter).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestForecast_GetDefaultsAndShape(t *testing.T) {
	svc := &fakeService{res: okResult()}
	e := newTestServer(svc, &fakeAdmin{}, nil, nil)

	rec := do(e, http.MethodGet, "/api/forecast?symbol=tcs.ns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"TCS.NS"}, svc.calls)
	assert.Equal(t, []int{4}, svc.days)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	for _, k := range []string{"forecast", "historical", "metrics"} {
		assert.Contains(t, body, k)
	}
	hist := body["historical"].(map[string]interface{})
	preds := hist["predictions"].([]interface{})
	assert.Nil(t, preds[0])
	assert.Equal(t, 101.0, preds[1])
}

func TestForecast_PostBody(t *testing.T) {
	svc := &fakeService{res: okResult()}
	e := newTestServer(svc, &fakeAdmin{}, nil, nil)

	rec := do(e, http.MethodPost, "/api/forecast", `{"symbol":"INFY.NS","days":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{7}, svc.days)
}

func TestForecast_Validation(t *testing.T) {
	svc := &fakeService{res: okResult()}
	e := newTestServer(svc, &fakeAdmin{}, nil, nil)

	rec := do(e, http.MethodGet, "/api/forecast", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "symbol")

	rec = do(e, http.MethodGet, "/api/forecast?symbol=X&days=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "days")
	assert.Empty(t, svc.calls)
}

func TestForecast_HorizonAboveMaxFromService(t *testing.T) {
	err := fmt.Errorf("%w: got 31, allowed 1..30", models.ErrInvalidHorizon)
	svc := &fakeService{res: models.FailedResult("X", err)}
	e := newTestServer(svc, &fakeAdmin{}, nil, nil)

	rec := do(e, http.MethodGet, "/api/forecast?symbol=X&days=31", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []int{31}, svc.days)
	assert.Contains(t, rec.Body.String(), "allowed 1..30")
}

func TestForecast_FailureStatusCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{models.ErrModelTraining, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: last training failed: %w", models.ErrModelUnavailable, models.ErrNoTrainingData), http.StatusServiceUnavailable},
		{models.ErrSymbolNotFound, http.StatusNotFound},
		{models.ErrInsufficientData, http.StatusUnprocessableEntity},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &fakeService{res: models.FailedResult("X", tc.err)}
		e := newTestServer(svc, &fakeAdmin{}, nil, nil)
		rec := do(e, http.MethodGet, "/api/forecast?symbol=X", "")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body models.ForecastResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.err.Error(), body.Error)
	}
}

func TestForecast_TrainingStatus(t *testing.T) {
	svc := &fakeService{res: models.FailedResult("X", models.ErrModelTraining)}
	e := newTestServer(svc, &fakeAdmin{}, nil, nil)
	rec := do(e, http.MethodGet, "/api/forecast?symbol=X", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"status":"training"`)
}

func TestForecast_CachedPerModelVersion(t *testing.T) {
	svc := &fakeService{res: okResult()}
	admin := &fakeAdmin{status: models.ModelStatus{Ready: true, Version: "linear-1"}}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	e := newTestServer(svc, admin, mc, nil)

	for i := 0; i < 3; i++ {
		rec := do(e, http.MethodGet, "/api/forecast?symbol=TCS.NS&days=4", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, svc.calls, 1)

	admin.status.Version = "linear-2"
	do(e, http.MethodGet, "/api/forecast?symbol=TCS.NS&days=4", "")
	assert.Len(t, svc.calls, 2)
}

func TestChart(t *testing.T) {
	e := newTestServer(&fakeService{res: okResult()}, &fakeAdmin{}, nil, nil)
	rec := do(e, http.MethodGet, "/api/forecast/chart?symbol=TCS.NS", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	e = newTestServer(&fakeService{res: models.FailedResult("X", models.ErrSymbolNotFound)}, &fakeAdmin{}, nil, nil)
	rec = do(e, http.MethodGet, "/api/forecast/chart?symbol=X", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_NOT_FOUND"`)
}

func TestModelEndpoints(t *testing.T) {
	admin := &fakeAdmin{status: models.ModelStatus{Ready: true, Version: "windowed-1", Variant: "windowed"}}
	e := newTestServer(&fakeService{}, admin, nil, nil)

	rec := do(e, http.MethodGet, "/api/model/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"windowed-1"`)

	rec = do(e, http.MethodPost, "/api/model/retrain", `{"reason":"new data"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(e, http.MethodPost, "/api/model/retrain", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"new data", "manual"}, admin.started)

	admin.refusing = true
	rec = do(e, http.MethodPost, "/api/model/retrain", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := newTestServer(&fakeService{res: okResult()}, &fakeAdmin{}, nil, ratelimit.New(2, time.Hour))
	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodGet, "/api/forecast?symbol=X", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(e, http.MethodGet, "/api/forecast?symbol=X", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
