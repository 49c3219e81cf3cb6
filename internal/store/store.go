// Package store реализует хранение измерений, сна и дневных анализов
// Поддерживаются Redis, PostgreSQL и хранилище в памяти
package store

import (
	"context"
	"fmt"
	"time"

	"healthsignal-service/internal/models"
)

// Store общий контракт всех реализаций хранилища
type Store interface {
	AddSamples(ctx context.Context, userID string, samples []models.Sample) error
	DailySamples(ctx context.Context, userID string, day time.Time) ([]models.Sample, error)
	PutSleepRecord(ctx context.Context, userID string, day time.Time, rec models.SleepRecord) error
	SleepRecord(ctx context.Context, userID string, day time.Time) (*models.SleepRecord, error)
	Analysis(ctx context.Context, userID string, day time.Time) (*models.DailyRecord, error)
	LoadDay(ctx context.Context, userID string, day time.Time) (models.DayData, error)
	SaveAnalysis(ctx context.Context, rec models.DailyRecord) error
	Ping(ctx context.Context) error
	Close() error
}

// DayWindow возвращает границы календарного дня [start, end) в часовом поясе хранилища.
// Календарная дата берется из day как есть, без перевода в loc.
func DayWindow(day time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// DateKey календарная дата в формате YYYY-MM-DD
func DateKey(day time.Time) string {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Format(models.DateLayout)
}

// UniqueSamples оставляет одно измерение на момент времени с точностью до миллисекунды.
// Из повторов остается последнее, порядок первых появлений сохраняется.
func UniqueSamples(samples []models.Sample) []models.Sample {
	pos := make(map[int64]int, len(samples))
	out := make([]models.Sample, 0, len(samples))
	for _, s := range samples {
		ms := s.Timestamp.UnixMilli()
		if i, ok := pos[ms]; ok {
			out[i] = s
			continue
		}
		pos[ms] = len(out)
		out = append(out, s)
	}
	return out
}

// ValidateSample проверяет физически допустимые значения измерения
func ValidateSample(s models.Sample) error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("sample timestamp is required")
	}
	if s.HeartRate <= 0 {
		return fmt.Errorf("heart rate must be positive, got %v", s.HeartRate)
	}
	if s.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", s.Steps)
	}
	if s.Calories < 0 {
		return fmt.Errorf("calories must be non-negative, got %v", s.Calories)
	}
	if s.ActiveMinutes < 0 {
		return fmt.Errorf("active minutes must be non-negative, got %d", s.ActiveMinutes)
	}
	if s.SpO2 != nil && (*s.SpO2 < 0 || *s.SpO2 > 100) {
		return fmt.Errorf("spo2 must be within [0,100], got %v", *s.SpO2)
	}
	return nil
}

// ValidateSleepRecord проверяет запись сна
func ValidateSleepRecord(r models.SleepRecord) error {
	if r.DurationHours < 0 {
		return fmt.Errorf("sleep duration must be non-negative, got %v", r.DurationHours)
	}
	if r.QualityScore < 0 || r.QualityScore > 100 {
		return fmt.Errorf("sleep quality must be within [0,100], got %v", r.QualityScore)
	}
	if r.DeepMinutes < 0 || r.RemMinutes < 0 || r.LightMinutes < 0 {
		return fmt.Errorf("sleep stage minutes must be non-negative")
	}
	return nil
}
