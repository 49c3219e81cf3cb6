package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsignal-service/internal/analysis"
	"healthsignal-service/internal/llm"
	"healthsignal-service/internal/models"
	"healthsignal-service/internal/narrative"
	"healthsignal-service/internal/notify"
	"healthsignal-service/internal/store"
)

var testNow = time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)

type testEnv struct {
	router   http.Handler
	handler  *Handler
	store    *store.MemoryStore
	notifier *notify.MemoryNotifier
	llm      *llm.MockCompleter
}

func newTestEnv(t *testing.T, pool bool) *testEnv {
	t.Helper()
	st := store.NewMemoryStore(time.UTC)
	notifier := notify.NewMemoryNotifier(0)
	completer := &llm.MockCompleter{Response: `{"summary":"Steady day","action":"Walk 20 minutes"}`}
	svc := narrative.NewService(completer)
	orch := analysis.New(st, svc, notifier, analysis.WithClock(func() time.Time { return testNow }))

	deps := Dependencies{
		Store:        st,
		Orchestrator: orch,
		Analyzer:     svc,
		History:      notifier,
		Location:     time.UTC,
		Now:          func() time.Time { return testNow },
	}
	if pool {
		p := analysis.NewPool(orch, 10)
		t.Cleanup(p.Stop)
		deps.Pool = p
	}

	h := NewHandler(deps)
	return &testEnv{router: NewRouter(h), handler: h, store: st, notifier: notifier, llm: completer}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func dayOfSamples() models.SamplesBatch {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return models.SamplesBatch{Samples: []models.Sample{
		{Timestamp: base, HeartRate: 70, Steps: 500, Calories: 20},
		{Timestamp: base.Add(time.Hour), HeartRate: 75, Steps: 500, Calories: 25},
		{Timestamp: base.Add(2 * time.Hour), HeartRate: 72, Steps: 500, Calories: 22},
	}}
}

func TestSamplesHandler_Batch(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/users/u1/samples", dayOfSamples())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp models.IngestResponse
	decode(t, rr, &resp)
	assert.Equal(t, 3, resp.Accepted)
	assert.False(t, resp.Queued)

	got, err := env.store.DailySamples(context.Background(), "u1", testNow)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSamplesHandler_SingleWithDefaultTimestamp(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/users/u1/samples", `{"heartRate": 64, "steps": 12}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got, err := env.store.DailySamples(context.Background(), "u1", testNow)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Timestamp.Equal(testNow))
	assert.Equal(t, 64.0, got[0].HeartRate)
}

func TestSamplesHandler_Invalid(t *testing.T) {
	env := newTestEnv(t, false)

	tests := map[string]string{
		"bad json":       `{"heartRate":`,
		"empty batch":    `{"samples": []}`,
		"zero heartrate": `{"heartRate": 0}`,
		"negative steps": `{"samples": [{"heartRate": 60, "steps": -5, "timestamp": "2025-03-10T09:00:00Z"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/users/u1/samples", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var resp map[string]string
			decode(t, rr, &resp)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestSamplesHandler_QueuesRefresh(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, http.MethodPost, "/users/u1/samples", dayOfSamples())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.IngestResponse
	decode(t, rr, &resp)
	assert.True(t, resp.Queued)
	assert.Equal(t, 1, env.handler.deps.Pool.QueueLen(), "one job per distinct day")
}

func TestListSamplesHandler(t *testing.T) {
	env := newTestEnv(t, false)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/users/u1/samples", dayOfSamples()).Code)

	rr := env.do(t, http.MethodGet, "/users/u1/samples?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Date    string          `json:"date"`
		Count   int             `json:"count"`
		Samples []models.Sample `json:"samples"`
	}
	decode(t, rr, &resp)
	assert.Equal(t, "2025-03-10", resp.Date)
	assert.Equal(t, 3, resp.Count)

	rr = env.do(t, http.MethodGet, "/users/u1/samples?date=2025-03-11", nil)
	decode(t, rr, &resp)
	assert.Equal(t, 0, resp.Count)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/users/u1/samples?date=10.03.2025", nil).Code)
}

func TestSleepHandler(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPut, "/users/u1/sleep/2025-03-10", models.SleepRecord{DurationHours: 5.5, QualityScore: 60})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rec, err := env.store.SleepRecord(context.Background(), "u1", testNow)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 5.5, rec.DurationHours)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/users/u1/sleep/yesterday", models.SleepRecord{}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/users/u1/sleep/2025-03-10", models.SleepRecord{QualityScore: 140}).Code)
}

func TestAnalysisHandler(t *testing.T) {
	env := newTestEnv(t, false)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/users/u1/samples", dayOfSamples()).Code)

	rr := env.do(t, http.MethodGet, "/users/u1/analysis?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rec models.DailyRecord
	decode(t, rr, &rec)
	assert.Equal(t, 17, rec.StressIndex)
	assert.Equal(t, models.StressLow, rec.StressLevel)
	assert.Len(t, rec.Tips, 3)
	assert.Equal(t, []string{"Very low activity detected - try to move more throughout the day"}, rec.Alerts)
	assert.Equal(t, "Steady day", rec.Narrative.Summary)
	assert.Equal(t, "u1_1741636800000", rec.ID)
	assert.Equal(t, 1, env.store.AnalysisCount())

	// second request reuses the stored narrative
	rr = env.do(t, http.MethodGet, "/users/u1/analysis?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, env.llm.Prompts, 1)

	// notifications were sent once per run and alert
	rr = env.do(t, http.MethodGet, "/users/u1/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var notes []models.Notification
	decode(t, rr, &notes)
	assert.Len(t, notes, 2)
	assert.Equal(t, "u1", notes[0].UserID)
}

func TestAnalysisHandler_NoData(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/users/ghost/analysis", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rec models.DailyRecord
	decode(t, rr, &rec)
	assert.Equal(t, 0, rec.StressIndex)
	assert.Equal(t, "2025-03-10", rec.Date)
	assert.Empty(t, rec.Alerts)
	assert.Empty(t, env.llm.Prompts)
}

func TestAnalysisHandler_SaveFailure(t *testing.T) {
	env := newTestEnv(t, false)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/users/u1/samples", dayOfSamples()).Code)
	env.store.FailSaves(errors.New("disk full"))

	rr := env.do(t, http.MethodGet, "/users/u1/analysis?date=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "false", rr.Header().Get("X-Persisted"))
}

func TestAnalyzeHealthHandler(t *testing.T) {
	env := newTestEnv(t, false)

	req := models.HealthAnalysisRequest{UserID: "u1", Metrics: dayOfSamples().Samples}
	rr := env.do(t, http.MethodPost, "/analyze-health", req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp models.HealthAnalysisResponse
	decode(t, rr, &resp)
	assert.Equal(t, "Steady day", resp.Summary)
	assert.Equal(t, "Walk 20 minutes", resp.Action)
	assert.Equal(t, 1500, resp.DailyStats.TotalSteps)
	assert.Equal(t, []string{"Very low activity detected - try to move more throughout the day"}, resp.Narrative.Alerts)

	rr = env.do(t, http.MethodPost, "/analyze-health", models.HealthAnalysisRequest{UserID: "u1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env.llm.Error = errors.New("rate limited")
	rr = env.do(t, http.MethodPost, "/analyze-health", req)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health models.HealthStatus
	decode(t, rr, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Store)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/users/u1/samples", dayOfSamples()).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/users/u1/analysis?date=2025-03-10", nil).Code)

	rr = env.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats models.StatsResponse
	decode(t, rr, &stats)
	assert.Equal(t, int64(3), stats.SamplesReceived)
	assert.Equal(t, int64(1), stats.AnalysesCompleted)
	assert.Equal(t, int64(1), stats.AlertsRaised)
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodDelete, "/users/u1/samples", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodGet, "/stats", nil)

	rr := env.do(t, http.MethodGet, "/prometheus", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthsignal_requests_total")
}
