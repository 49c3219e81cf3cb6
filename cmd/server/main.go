// Package main запускает сервис анализа биометрии и алертов
// Сервис реализует:
// - HTTP API для приема измерений с часов и записей сна
// - индекс стресса, советы и пороговые алерты за день
// - текстовые рекомендации языковой модели
// - уведомления об алертах через Redis pub/sub
// - хранение в Redis или PostgreSQL
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"healthsignal-service/internal/analysis"
	"healthsignal-service/internal/analytics"
	"healthsignal-service/internal/config"
	"healthsignal-service/internal/handlers"
	"healthsignal-service/internal/llm"
	"healthsignal-service/internal/logger"
	"healthsignal-service/internal/metrics"
	"healthsignal-service/internal/models"
	"healthsignal-service/internal/narrative"
	"healthsignal-service/internal/notify"
	"healthsignal-service/internal/store"
)

func main() {
	log.Println("Starting HealthSignal Service...")
	log.Printf("Go version: %s", runtime.Version())
	log.Printf("NumCPU: %d", runtime.NumCPU())

	// Загружаем конфигурацию
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	lg := logger.New(logger.ParseLevel(cfg.LogLevel), nil)

	// Инициализируем хранилище и уведомления
	st, notifier, history := openStore(cfg, lg)

	// Инициализируем генерацию рекомендаций
	narrator, healthAnalyzer := buildNarrative(cfg, lg)

	orchestrator := analysis.New(st, narrator, notifier,
		analysis.WithNarrativeTimeout(cfg.Analysis.NarrativeTimeout),
		analysis.WithLogger(lg),
		analysis.WithMemo(analytics.NewMemo(cfg.Analysis.MemoSize)),
	)

	pool := analysis.NewPool(orchestrator, cfg.Analysis.QueueSize)
	pool.Start(cfg.Analysis.WorkerCount)
	lg.Infof("Refresh pool started with %d workers", cfg.Analysis.WorkerCount)

	// Создаем обработчики
	handler := handlers.NewHandler(handlers.Dependencies{
		Store:        st,
		Orchestrator: orchestrator,
		Pool:         pool,
		Analyzer:     healthAnalyzer,
		History:      history,
		Location:     cfg.Store.Location,
		Logger:       lg,
	})
	router := handlers.NewRouter(handler)

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Запускаем горутину для обновления метрик
	go updateMetricsLoop(pool)

	// Запускаем горутину для обработки результатов пересчета
	go processAnalysisResults(pool, handler, lg)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в горутине
	go func() {
		lg.Infof("Server listening on %s", cfg.Server.Addr)
		lg.Infof("Endpoints:")
		lg.Infof("  POST /users/{userId}/samples       - Submit one sample or a batch")
		lg.Infof("  GET  /users/{userId}/samples       - Samples of a day (?date=YYYY-MM-DD)")
		lg.Infof("  PUT  /users/{userId}/sleep/{date}  - Store a sleep record")
		lg.Infof("  GET  /users/{userId}/analysis      - Daily analysis (?date=YYYY-MM-DD)")
		lg.Infof("  GET  /users/{userId}/notifications - Recent alert notifications")
		lg.Infof("  POST /analyze-health               - Narrative for posted metrics")
		lg.Infof("  GET  /health                       - Health check")
		lg.Infof("  GET  /stats                        - Service statistics")
		lg.Infof("  GET  /prometheus                   - Prometheus metrics")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	lg.Infof("Shutting down server...")

	// Контекст с таймаутом для завершения
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Завершаем HTTP сервер
	if err := server.Shutdown(ctx); err != nil {
		lg.Errorf("Server shutdown error: %v", err)
	}

	// Останавливаем пересчет
	pool.Stop()

	// Закрываем хранилище
	if err := st.Close(); err != nil {
		lg.Errorf("Store close error: %v", err)
	}

	lg.Infof("Server stopped")
}

// openStore подключает хранилище по STORE_DRIVER; при недоступном Redis работает в памяти
func openStore(cfg *config.Config, lg *logger.Logger) (store.Store, notify.Notifier, notify.History) {
	logNotifier := notify.NewLogNotifier(lg)

	switch cfg.Store.Driver {
	case config.DriverRedis:
		// Пробуем подключиться к Redis с повторами
		var lastErr error
		for i := 0; i < 5; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			client, err := store.NewRedisClient(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
			cancel()
			if err == nil {
				lg.Infof("Connected to Redis at %s", cfg.Store.RedisAddr)
				redisNotifier := notify.NewRedisNotifier(client)
				return store.NewRedisStore(client, cfg.Store.Location), notify.Multi{logNotifier, redisNotifier}, redisNotifier
			}
			lastErr = err
			lg.Warnf("Redis connection attempt %d failed: %v", i+1, err)
			if i < 4 {
				time.Sleep(time.Duration(i+1) * time.Second)
			}
		}
		lg.Warnf("Failed to connect to Redis, running with in-memory store: %v", lastErr)

	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := store.NewPostgresStore(ctx, cfg.Store.PostgresDSN, cfg.Store.Location)
		if err != nil {
			log.Fatalf("Postgres unavailable: %v", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("Postgres migration failed: %v", err)
		}
		lg.Infof("Connected to Postgres")
		memNotifier := notify.NewMemoryNotifier(notify.RecentLimit)
		return pg, notify.Multi{logNotifier, memNotifier}, memNotifier
	}

	memNotifier := notify.NewMemoryNotifier(notify.RecentLimit)
	return store.NewMemoryStore(cfg.Store.Location), notify.Multi{logNotifier, memNotifier}, memNotifier
}

// buildNarrative выбирает источник рекомендаций: внешний сервис или модель напрямую
func buildNarrative(cfg *config.Config, lg *logger.Logger) (analysis.Narrator, handlers.HealthAnalyzer) {
	var (
		narrator       analysis.Narrator
		healthAnalyzer handlers.HealthAnalyzer
	)

	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
			JSONMode:    true,
		})
		if err != nil {
			log.Fatalf("Invalid LLM configuration: %v", err)
		}
		svc := narrative.NewService(client)
		narrator, healthAnalyzer = svc, svc
		lg.Infof("Narratives generated in-process with model %s", cfg.LLM.Model)
	}

	if cfg.Analysis.NarrativeURL != "" {
		narrator = narrative.NewClient(cfg.Analysis.NarrativeURL, cfg.Analysis.NarrativeTimeout)
		lg.Infof("Narratives requested from %s", cfg.Analysis.NarrativeURL)
	}

	if narrator == nil {
		lg.Warnf("No OPENROUTER_API_KEY or NARRATIVE_URL set, daily analyses will not be persisted")
	}
	return narrator, healthAnalyzer
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(pool *analysis.Pool) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		metrics.QueueDepth.Set(float64(pool.QueueLen()))
		metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
	}
}

// processAnalysisResults обрабатывает результаты фонового пересчета
func processAnalysisResults(pool *analysis.Pool, handler *handlers.Handler, lg *logger.Logger) {
	for res := range pool.Results() {
		if res.Err != nil {
			lg.Errorf("Refresh for %s on %s failed: %v", res.Job.UserID, store.DateKey(res.Job.Day), res.Err)
			continue
		}
		handler.RecordAnalysis(res.Record)
		if res.Record.StressLevel == models.StressHigh {
			lg.Warnf("High stress for %s on %s: index %d", res.Job.UserID, res.Record.Date, res.Record.StressIndex)
		}
	}
}
