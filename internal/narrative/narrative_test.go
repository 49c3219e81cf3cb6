package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsignal-service/internal/llm"
	"healthsignal-service/internal/models"
)

func ptr(v float64) *float64 { return &v }

func daySamples() []models.Sample {
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	return []models.Sample{
		{Timestamp: base, HeartRate: 70, RestingHeartRate: 58, Steps: 6000, Calories: 120, ActiveMinutes: 30, HRV: ptr(60), SpO2: ptr(97)},
		{Timestamp: base.Add(time.Hour), HeartRate: 75, RestingHeartRate: 60, Steps: 6345, Calories: 130, ActiveMinutes: 20, HRV: ptr(40), SpO2: ptr(98)},
		{Timestamp: base.Add(2 * time.Hour), HeartRate: 72, RestingHeartRate: 59, Steps: 0, Calories: 50, ActiveMinutes: 0, HRV: ptr(40)},
	}
}

func TestText_Coercion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "string", in: `"hello"`, want: "hello"},
		{name: "null", in: `null`, want: ""},
		{name: "number", in: `42`, want: "42"},
		{name: "bool", in: `true`, want: "true"},
		{name: "list", in: `["eat", "", null, "sleep"]`, want: "eat sleep"},
		{name: "list of numbers", in: `[1, 2.5]`, want: "1 2.5"},
		{name: "object", in: `{"a": 1, "b": "x"}`, want: `{"a":1,"b":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Text
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeReply_MissingFields(t *testing.T) {
	n, err := decodeReply([]byte(`{"summary": ["Calm", "day"], "action": {"walk": 20}}`))
	require.NoError(t, err)
	assert.Equal(t, "Calm day", n.Summary)
	assert.Equal(t, `{"walk":20}`, n.Action)
	assert.Empty(t, n.BreakfastSuggestion)
	assert.Empty(t, n.SleepRemark)
	assert.Empty(t, n.Alerts)

	_, err = decodeReply([]byte(`not json`))
	assert.Error(t, err)
}

func TestSleepQualityDescription(t *testing.T) {
	tests := []struct {
		quality, hours float64
		want           string
	}{
		{90, 8, "excellent and restful"},
		{90, 6, "good"},
		{75, 5, "good"},
		{60, 5, "short and likely interrupted"},
		{60, 7, "fair, possibly light"},
		{40, 4, "very poor and short"},
		{40, 6, "poor and likely fitful"},
	}
	for _, tt := range tests {
		got := SleepQualityDescription(&models.SleepRecord{QualityScore: tt.quality, DurationHours: tt.hours})
		assert.Equal(t, tt.want, got, "quality=%v hours=%v", tt.quality, tt.hours)
	}
	assert.Empty(t, SleepQualityDescription(nil))
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", groupThousands(0))
	assert.Equal(t, "999", groupThousands(999))
	assert.Equal(t, "1,000", groupThousands(1000))
	assert.Equal(t, "1,234,567", groupThousands(1234567))
	assert.Equal(t, "-1,234", groupThousands(-1234))
}

func TestBuildPrompt(t *testing.T) {
	req := models.HealthAnalysisRequest{
		UserID:      "u1",
		Metrics:     daySamples(),
		SleepData:   &models.SleepRecord{DurationHours: 5.5, QualityScore: 62, DeepMinutes: 40, RemMinutes: 70},
		UserProfile: &models.UserProfile{Gender: "female", WeightKg: 61.5},
	}
	stats := models.DailyStats{TotalSteps: 12345, AvgRestingHR: 59, MedianHRV: ptr(40)}

	prompt := BuildPrompt(req, stats, []string{"Sleep duration low: 5.5h (recommended: 7-9h)"})
	assert.Contains(t, prompt, "- Gender: female")
	assert.Contains(t, prompt, "- Weight: 61.5 kg")
	assert.Contains(t, prompt, "- Goal: General health")
	assert.Contains(t, prompt, "- Duration: 5.5h")
	assert.Contains(t, prompt, "- Quality score: 62/100")
	assert.Contains(t, prompt, "- Total steps: 12,345")
	assert.Contains(t, prompt, "- HRV median: 40 ms")
	assert.Contains(t, prompt, "- Blood oxygen (SpO2): Not available")
	assert.Contains(t, prompt, "- Sleep duration low: 5.5h")
	assert.Contains(t, prompt, "Your sleep quality was short and likely interrupted.")

	bare := BuildPrompt(models.HealthAnalysisRequest{}, models.DailyStats{}, nil)
	assert.Contains(t, bare, "No critical alerts")
	assert.Contains(t, bare, "- Gender: Not specified")
	assert.NotContains(t, bare, "Sleep last night")
}

func TestService_Analyze(t *testing.T) {
	mock := &llm.MockCompleter{Response: `{
		"summary": "Balanced day",
		"action": ["Take", "a walk"],
		"breakfastSuggestion": "Oats",
		"indicatorToWatch": "HRV",
		"alerts": ["model invented alert"],
		"sleepRemark": "Your sleep quality was good.",
		"sleepPractices": 3
	}`}
	svc := NewService(mock)

	resp, err := svc.Analyze(context.Background(), models.HealthAnalysisRequest{UserID: "u1", Metrics: daySamples()})
	require.NoError(t, err)

	assert.Equal(t, "Balanced day", resp.Summary)
	assert.Equal(t, "Take a walk", resp.Action)
	assert.Equal(t, "3", resp.SleepPractices)
	assert.Equal(t, []string{
		"HRV dropped more than 20% - possible stress or overtraining",
		"Very low activity detected - try to move more throughout the day",
	}, resp.Narrative.Alerts, "alerts come from the numeric rules, not from the model")

	assert.Equal(t, 12345, resp.DailyStats.TotalSteps)
	assert.Equal(t, 50, resp.DailyStats.TotalActiveMinutes)
	require.NotNil(t, resp.DailyStats.MedianHRV)
	assert.Equal(t, 40.0, *resp.DailyStats.MedianHRV)

	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "- Total steps: 12,345")

	n, err := svc.Narrate(context.Background(), models.HealthAnalysisRequest{Metrics: daySamples()})
	require.NoError(t, err)
	assert.Equal(t, "Balanced day", n.Summary)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	req := models.HealthAnalysisRequest{Metrics: daySamples()}

	_, err := NewService(&llm.MockCompleter{}).Analyze(ctx, models.HealthAnalysisRequest{})
	assert.ErrorIs(t, err, ErrNoMetrics)

	_, err = NewService(&llm.MockCompleter{Error: assert.AnError}).Analyze(ctx, req)
	assert.ErrorIs(t, err, assert.AnError)

	_, err = NewService(&llm.MockCompleter{Response: "   "}).Analyze(ctx, req)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = NewService(&llm.MockCompleter{Response: "plain text"}).Narrate(ctx, req)
	assert.Error(t, err)
}

func TestClient_Narrate(t *testing.T) {
	var got models.HealthAnalysisRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summary":"ok","indicatorToWatch":["HR","HRV"],"alerts":["a"],"dailyStats":{"totalSteps":1}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	n, err := c.Narrate(context.Background(), models.HealthAnalysisRequest{
		UserID:    "u1",
		Date:      "2025-03-10",
		Metrics:   daySamples(),
		SleepData: &models.SleepRecord{DurationHours: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", n.Summary)
	assert.Equal(t, "HR HRV", n.IndicatorToWatch)
	assert.Equal(t, []string{"a"}, n.Alerts)
	assert.Empty(t, n.Action)

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "2025-03-10", got.Date)
	assert.Len(t, got.Metrics, 3)
	require.NotNil(t, got.SleepData)
}

func TestClient_Failures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer failing.Close()

	_, err := NewClient(failing.URL, time.Second).Narrate(context.Background(), models.HealthAnalysisRequest{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = NewClient(slow.URL, 5*time.Second).Narrate(ctx, models.HealthAnalysisRequest{})
	assert.Error(t, err)
}
