// Package narrative генерирует текстовые рекомендации по данным дня.
// Service обращается к языковой модели напрямую, Client вызывает отдельный сервис по HTTP.
// Оба реализуют Narrate и подходят оркестратору анализа.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthsignal-service/internal/analytics"
	"healthsignal-service/internal/llm"
	"healthsignal-service/internal/metrics"
	"healthsignal-service/internal/models"
)

var (
	// ErrNoMetrics в запросе нет ни одного измерения
	ErrNoMetrics = errors.New("no health metrics provided")
	// ErrEmptyResponse модель вернула пустой ответ
	ErrEmptyResponse = errors.New("empty response from health analysis model")
)

// Service строит промпт и запрашивает рекомендации у модели
type Service struct {
	llm llm.Completer
}

// NewService создает сервис поверх клиента модели
func NewService(completer llm.Completer) *Service {
	return &Service{llm: completer}
}

// Analyze считает статистику и алерты, затем запрашивает текст у модели.
// Алерты в ответе всегда численные, текст модели на них не влияет.
func (s *Service) Analyze(ctx context.Context, req models.HealthAnalysisRequest) (models.HealthAnalysisResponse, error) {
	if len(req.Metrics) == 0 {
		return models.HealthAnalysisResponse{}, ErrNoMetrics
	}

	stats := analytics.ComputeDailyStats(req.Metrics)
	alerts := analytics.Alerts(req.Metrics, req.SleepData)
	prompt := BuildPrompt(req, stats, alerts)

	start := time.Now()
	content, err := s.llm.Complete(ctx, prompt)
	metrics.NarrativeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return models.HealthAnalysisResponse{}, fmt.Errorf("health analysis model call failed: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return models.HealthAnalysisResponse{}, ErrEmptyResponse
	}

	n, err := decodeReply([]byte(content))
	if err != nil {
		return models.HealthAnalysisResponse{}, fmt.Errorf("invalid model response: %w", err)
	}
	n.Alerts = alerts

	return models.HealthAnalysisResponse{Narrative: n, DailyStats: stats}, nil
}

// Narrate возвращает только текстовую часть
func (s *Service) Narrate(ctx context.Context, req models.HealthAnalysisRequest) (models.Narrative, error) {
	resp, err := s.Analyze(ctx, req)
	if err != nil {
		return models.Narrative{}, err
	}
	return resp.Narrative, nil
}
