package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthsignal-service/internal/logger"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// NewRouter настраивает маршруты API
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	// API эндпоинты
	router.HandleFunc("/users/{userId}/samples", h.SamplesHandler).Methods("POST")
	router.HandleFunc("/users/{userId}/samples", h.ListSamplesHandler).Methods("GET")
	router.HandleFunc("/users/{userId}/sleep/{date}", h.SleepHandler).Methods("PUT")
	router.HandleFunc("/users/{userId}/analysis", h.AnalysisHandler).Methods("GET")
	router.HandleFunc("/users/{userId}/notifications", h.NotificationsHandler).Methods("GET")
	router.HandleFunc("/analyze-health", h.AnalyzeHealthHandler).Methods("POST")
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/stats", h.StatsHandler).Methods("GET")

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// Middleware для идентификатора запроса и логирования
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(h.deps.Logger))

	return router
}

// requestIDMiddleware проставляет X-Request-ID, если клиент его не прислал
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder запоминает код ответа для лога
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Infof("%s %s %d %s request_id=%s", r.Method, r.URL.Path, rec.status, time.Since(start), r.Header.Get(RequestIDHeader))
		})
	}
}
