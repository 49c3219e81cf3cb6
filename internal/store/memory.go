package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"healthsignal-service/internal/models"
)

// MemoryStore хранилище в памяти для разработки и тестов
type MemoryStore struct {
	mu       sync.RWMutex
	loc      *time.Location
	samples  map[string][]models.Sample
	sleep    map[string]models.SleepRecord
	byDay    map[string]models.DailyRecord
	byID     map[string]models.DailyRecord
	failSave error
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{
		loc:     loc,
		samples: make(map[string][]models.Sample),
		sleep:   make(map[string]models.SleepRecord),
		byDay:   make(map[string]models.DailyRecord),
		byID:    make(map[string]models.DailyRecord),
	}
}

// FailSaves заставляет SaveAnalysis возвращать err (nil отключает)
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = err
}

func dayKey(userID, date string) string { return userID + ":" + date }

// AddSamples сохраняет измерения, поддерживая порядок по времени.
// Измерение с уже известным моментом времени заменяет прежнее.
func (m *MemoryStore) AddSamples(_ context.Context, userID string, samples []models.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := UniqueSamples(append(append([]models.Sample(nil), m.samples[userID]...), samples...))
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})
	m.samples[userID] = list
	return nil
}

// DailySamples возвращает измерения за календарный день
func (m *MemoryStore) DailySamples(_ context.Context, userID string, day time.Time) ([]models.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailySamples(userID, day), nil
}

func (m *MemoryStore) dailySamples(userID string, day time.Time) []models.Sample {
	start, end := DayWindow(day, m.loc)
	out := []models.Sample{}
	for _, s := range m.samples[userID] {
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	return out
}

// PutSleepRecord сохраняет запись сна
func (m *MemoryStore) PutSleepRecord(_ context.Context, userID string, day time.Time, rec models.SleepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleep[dayKey(userID, DateKey(day))] = rec
	return nil
}

// SleepRecord возвращает запись сна или nil
func (m *MemoryStore) SleepRecord(_ context.Context, userID string, day time.Time) (*models.SleepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.sleep[dayKey(userID, DateKey(day))]; ok {
		return &rec, nil
	}
	return nil, nil
}

// Analysis возвращает анализ за день или nil
func (m *MemoryStore) Analysis(_ context.Context, userID string, day time.Time) (*models.DailyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.byDay[dayKey(userID, DateKey(day))]; ok {
		return &rec, nil
	}
	return nil, nil
}

// LoadDay возвращает все данные дня
func (m *MemoryStore) LoadDay(_ context.Context, userID string, day time.Time) (models.DayData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := dayKey(userID, DateKey(day))
	out := models.DayData{Samples: m.dailySamples(userID, day)}
	if rec, ok := m.sleep[key]; ok {
		out.Sleep = &rec
	}
	if rec, ok := m.byDay[key]; ok {
		out.Existing = &rec
	}
	return out, nil
}

// SaveAnalysis сохраняет запись анализа
func (m *MemoryStore) SaveAnalysis(_ context.Context, rec models.DailyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.byID[rec.ID] = rec
	m.byDay[dayKey(rec.UserID, rec.Date)] = rec
	return nil
}

// AnalysisCount количество сохраненных анализов
func (m *MemoryStore) AnalysisCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Ping всегда успешен
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close ничего не делает
func (m *MemoryStore) Close() error { return nil }
