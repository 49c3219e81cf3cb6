// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"healthsignal-service/internal/analysis"
	"healthsignal-service/internal/logger"
	"healthsignal-service/internal/metrics"
	"healthsignal-service/internal/models"
	"healthsignal-service/internal/narrative"
	"healthsignal-service/internal/notify"
	"healthsignal-service/internal/store"
)

// MaxBatchSize максимальное число измерений в одном запросе
const MaxBatchSize = 5000

// HealthAnalyzer строит рекомендации по данным, присланным в запросе
type HealthAnalyzer interface {
	Analyze(ctx context.Context, req models.HealthAnalysisRequest) (models.HealthAnalysisResponse, error)
}

// counterStore хранилище с общими счетчиками (Redis)
type counterStore interface {
	GetCounter(ctx context.Context, key string) (int64, error)
}

// Dependencies зависимости обработчиков; Pool, Analyzer и History необязательны
type Dependencies struct {
	Store        store.Store
	Orchestrator analysis.Runner
	Pool         *analysis.Pool
	Analyzer     HealthAnalyzer
	History      notify.History
	Location     *time.Location
	Logger       *logger.Logger
	// Now источник текущего времени для даты по умолчанию
	Now func() time.Time
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	deps      Dependencies
	startTime time.Time

	samplesReceived   atomic.Int64
	analysesCompleted atomic.Int64
	alertsRaised      atomic.Int64
}

// NewHandler создает новый обработчик
func NewHandler(deps Dependencies) *Handler {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{deps: deps, startTime: time.Now()}
}

// RecordAnalysis учитывает завершенный анализ в статистике сервиса
func (h *Handler) RecordAnalysis(rec models.DailyRecord) {
	h.analysesCompleted.Add(1)
	h.alertsRaised.Add(int64(len(rec.Alerts)))
}

// SamplesHandler обрабатывает POST /users/{userId}/samples - прием одного измерения или пакета
func (h *Handler) SamplesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/samples"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	userID := mux.Vars(r)["userId"]

	var body struct {
		models.Sample
		Samples *[]models.Sample `json:"samples"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, endpoint, r.Method, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	samples := []models.Sample{body.Sample}
	if body.Samples != nil {
		samples = *body.Samples
	}
	if len(samples) == 0 || len(samples) > MaxBatchSize {
		h.fail(w, endpoint, r.Method, "Batch must contain between 1 and "+strconv.Itoa(MaxBatchSize)+" samples", http.StatusBadRequest)
		return
	}

	// Устанавливаем временную метку, если не указана
	now := h.deps.Now()
	for i := range samples {
		if samples[i].Timestamp.IsZero() {
			samples[i].Timestamp = now
		}
		if err := store.ValidateSample(samples[i]); err != nil {
			h.fail(w, endpoint, r.Method, "Sample "+strconv.Itoa(i)+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.deps.Store.AddSamples(r.Context(), userID, samples); err != nil {
		metrics.StoreErrors.WithLabelValues("add_samples").Inc()
		h.deps.Logger.Errorf("Failed to store samples for %s: %v", userID, err)
		h.fail(w, endpoint, r.Method, "Failed to store samples", http.StatusServiceUnavailable)
		return
	}
	metrics.SamplesReceived.Add(float64(len(samples)))
	h.samplesReceived.Add(int64(len(samples)))

	// Пересчитываем затронутые дни в фоне
	queued := false
	if h.deps.Pool != nil {
		days := map[string]time.Time{}
		for _, s := range samples {
			local := s.Timestamp.In(h.deps.Location)
			days[store.DateKey(local)] = local
		}
		for _, day := range days {
			if h.deps.Pool.Submit(analysis.Job{UserID: userID, Day: day}) {
				queued = true
			} else {
				h.deps.Logger.Warnf("Refresh queue is full, skipping %s on %s", userID, store.DateKey(day))
			}
		}
		metrics.QueueDepth.Set(float64(h.deps.Pool.QueueLen()))
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, models.IngestResponse{Accepted: len(samples), Queued: queued}, http.StatusOK)
}

// ListSamplesHandler обрабатывает GET /users/{userId}/samples?date= - измерения за день
func (h *Handler) ListSamplesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/samples"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	userID := mux.Vars(r)["userId"]
	day, err := h.dayParam(r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, endpoint, r.Method, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := h.deps.Store.DailySamples(r.Context(), userID, day)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("samples").Inc()
		h.fail(w, endpoint, r.Method, "Failed to get samples: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	response := map[string]interface{}{
		"userId":  userID,
		"date":    store.DateKey(day),
		"count":   len(samples),
		"samples": samples,
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// SleepHandler обрабатывает PUT /users/{userId}/sleep/{date} - запись сна за ночь
func (h *Handler) SleepHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/sleep/{date}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	vars := mux.Vars(r)
	day, err := time.Parse(models.DateLayout, vars["date"])
	if err != nil {
		h.fail(w, endpoint, r.Method, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var rec models.SleepRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.fail(w, endpoint, r.Method, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := store.ValidateSleepRecord(rec); err != nil {
		h.fail(w, endpoint, r.Method, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.deps.Store.PutSleepRecord(r.Context(), vars["userId"], day, rec); err != nil {
		metrics.StoreErrors.WithLabelValues("put_sleep").Inc()
		h.fail(w, endpoint, r.Method, "Failed to store sleep record", http.StatusServiceUnavailable)
		return
	}

	if h.deps.Pool != nil && !h.deps.Pool.Submit(analysis.Job{UserID: vars["userId"], Day: day}) {
		h.deps.Logger.Warnf("Refresh queue is full, skipping %s on %s", vars["userId"], vars["date"])
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, rec, http.StatusOK)
}

// AnalysisHandler обрабатывает GET /users/{userId}/analysis?date= - анализ дня
func (h *Handler) AnalysisHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/analysis"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	userID := mux.Vars(r)["userId"]
	day, err := h.dayParam(r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, endpoint, r.Method, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.deps.Orchestrator.Run(r.Context(), userID, day)
	var storeErr *analysis.StoreError
	switch {
	case err == nil:
	case errors.As(err, &storeErr) && storeErr.Op == "save":
		// Результат посчитан, но не сохранен; следующий запрос попробует снова
		h.deps.Logger.Errorf("Failed to persist analysis for %s: %v", userID, err)
		w.Header().Set("X-Persisted", "false")
	default:
		h.deps.Logger.Errorf("Analysis for %s failed: %v", userID, err)
		h.fail(w, endpoint, r.Method, "Failed to load day data", http.StatusServiceUnavailable)
		return
	}
	h.RecordAnalysis(rec)

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, rec, http.StatusOK)
}

// NotificationsHandler обрабатывает GET /users/{userId}/notifications - последние уведомления
func (h *Handler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{userId}/notifications"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	if h.deps.History == nil {
		h.fail(w, endpoint, r.Method, "Notifications not available", http.StatusServiceUnavailable)
		return
	}

	limit := notify.RecentLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= notify.RecentLimit {
			limit = l
		}
	}

	list, err := h.deps.History.Recent(r.Context(), mux.Vars(r)["userId"], limit)
	if err != nil {
		h.fail(w, endpoint, r.Method, "Failed to get notifications: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, list, http.StatusOK)
}

// AnalyzeHealthHandler обрабатывает POST /analyze-health - рекомендации по присланным данным
func (h *Handler) AnalyzeHealthHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/analyze-health"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	if h.deps.Analyzer == nil {
		h.fail(w, endpoint, r.Method, "Health analysis service not configured", http.StatusServiceUnavailable)
		return
	}

	var req models.HealthAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, endpoint, r.Method, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.deps.Analyzer.Analyze(r.Context(), req)
	switch {
	case errors.Is(err, narrative.ErrNoMetrics):
		h.fail(w, endpoint, r.Method, "No health metrics provided", http.StatusBadRequest)
		return
	case err != nil:
		metrics.NarrativeFailures.Inc()
		h.deps.Logger.Errorf("Health analysis failed: %v", err)
		h.fail(w, endpoint, r.Method, "Health analysis service temporarily unavailable", http.StatusBadGateway)
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, resp, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	storeStatus := "disconnected"
	status := "degraded"
	if h.deps.Store != nil && h.deps.Store.Ping(r.Context()) == nil {
		storeStatus = "connected"
		status = "healthy"
	}

	h.respondJSON(w, models.HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Store:     storeStatus,
		Uptime:    time.Since(h.startTime).String(),
	}, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	response := models.StatsResponse{
		SamplesReceived:   h.samplesReceived.Load(),
		AnalysesCompleted: h.analysesCompleted.Load(),
		AlertsRaised:      h.alertsRaised.Load(),
	}

	// Счетчики Redis общие для всех реплик
	if cs, ok := h.deps.Store.(counterStore); ok {
		if total, err := cs.GetCounter(r.Context(), store.SamplesTotalKey); err == nil {
			response.SamplesReceived = total
		}
		if total, err := cs.GetCounter(r.Context(), store.AnalysesTotalKey); err == nil {
			response.AnalysesCompleted = total
		}
	}
	if h.deps.Pool != nil {
		response.QueuedRefreshes = h.deps.Pool.QueueLen()
	}

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// dayParam разбирает ?date=YYYY-MM-DD, по умолчанию сегодня в часовом поясе хранилища
func (h *Handler) dayParam(value string) (time.Time, error) {
	if value == "" {
		return h.deps.Now().In(h.deps.Location), nil
	}
	day, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, errors.New("invalid date, expected YYYY-MM-DD")
	}
	return day, nil
}

// fail отправляет ошибку и учитывает ее в метриках запросов
func (h *Handler) fail(w http.ResponseWriter, endpoint, method, message string, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	h.respondError(w, message, status)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
