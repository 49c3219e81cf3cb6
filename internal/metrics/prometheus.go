// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"healthsignal-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsignal_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthsignal_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 20},
		},
		[]string{"endpoint", "method"},
	)

	// SamplesReceived количество принятых измерений
	SamplesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsignal_samples_received_total",
			Help: "Total number of biometric samples received",
		},
	)

	// AnalysesTotal количество выполненных анализов по уровню стресса
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsignal_analyses_total",
			Help: "Total number of daily analyses by stress level",
		},
		[]string{"level"},
	)

	// AlertsRaised количество сработавших алертов
	AlertsRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsignal_alerts_raised_total",
			Help: "Total number of threshold alerts raised",
		},
	)

	// LastStressIndex последний рассчитанный индекс стресса
	LastStressIndex = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsignal_last_stress_index",
			Help: "Stress index of the most recent analysis",
		},
	)

	// NarrativeFailures неудачные вызовы сервиса рекомендаций
	NarrativeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsignal_narrative_failures_total",
			Help: "Total number of failed narrative generations",
		},
	)

	// NarrativeLatency время генерации рекомендаций
	NarrativeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthsignal_narrative_latency_seconds",
			Help:    "Narrative generation latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	// NotificationsTotal отправленные уведомления по результату
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsignal_notifications_total",
			Help: "Total number of alert notifications by result",
		},
		[]string{"result"},
	)

	// StoreErrors ошибки хранилища по операции
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsignal_store_errors_total",
			Help: "Total number of store errors by operation",
		},
		[]string{"op"},
	)

	// QueueDepth количество задач пересчета в очереди
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsignal_refresh_queue_depth",
			Help: "Number of refresh jobs waiting in the queue",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsignal_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// AnalysisLatency время выполнения анализа дня
	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthsignal_analysis_latency_seconds",
			Help:    "Daily analysis latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .25, 1, 5, 20},
		},
	)
)

// UpdateAnalysisMetrics обновляет метрики по результату анализа
func UpdateAnalysisMetrics(result models.AnalysisResult, took time.Duration) {
	AnalysesTotal.WithLabelValues(string(result.StressLevel)).Inc()
	LastStressIndex.Set(float64(result.StressIndex))
	AlertsRaised.Add(float64(len(result.Alerts)))
	AnalysisLatency.Observe(took.Seconds())
}

// ObserveNotification учитывает результат отправки уведомления
func ObserveNotification(err error) {
	if err != nil {
		NotificationsTotal.WithLabelValues("failed").Inc()
		return
	}
	NotificationsTotal.WithLabelValues("sent").Inc()
}
