// Package analytics реализует расчет индекса стресса и пороговых алертов по биометрии за день
// Включает:
// - индекс стресса по пульсу, качеству сна и количеству шагов
// - классификацию уровня стресса и подбор советов
// - пороговые алерты (HRV, сон, SpO2, малоподвижность)
// - дневную статистику для текстовых рекомендаций
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"healthsignal-service/internal/models"
)

// DefaultMemoSize количество результатов, которые хранит Memo по умолчанию
const DefaultMemoSize = 1024

// Analyze выполняет полный численный анализ дня
func Analyze(samples []models.Sample, sleep *models.SleepRecord) models.AnalysisResult {
	index := StressIndex(samples, sleep)
	level := Classify(index)
	return models.AnalysisResult{
		StressIndex: index,
		StressLevel: level,
		Tips:        Tips(level),
		Alerts:      Alerts(samples, sleep),
	}
}

// Memo кэширует результат Analyze для одинаковых входных данных, вытесняя давно неиспользуемые
type Memo struct {
	cache *lru.Cache[string, models.AnalysisResult]
}

// NewMemo создает кэш на size результатов
func NewMemo(size int) *Memo {
	if size <= 0 {
		size = DefaultMemoSize
	}
	// ошибка возможна только при size <= 0
	cache, _ := lru.New[string, models.AnalysisResult](size)
	return &Memo{cache: cache}
}

// Analyze возвращает закэшированный результат или вычисляет его
func (m *Memo) Analyze(samples []models.Sample, sleep *models.SleepRecord) models.AnalysisResult {
	key, err := Fingerprint(samples, sleep)
	if err != nil {
		return Analyze(samples, sleep)
	}

	if result, ok := m.cache.Get(key); ok {
		return cloneResult(result)
	}
	result := Analyze(samples, sleep)
	m.cache.Add(key, result)
	return cloneResult(result)
}

// Len возвращает количество закэшированных результатов
func (m *Memo) Len() int {
	return m.cache.Len()
}

// Fingerprint строит ключ кэша по измерениям и сну
func Fingerprint(samples []models.Sample, sleep *models.SleepRecord) (string, error) {
	data, err := json.Marshal(Input{Samples: samples, Sleep: sleep})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// результат отдается наружу копией, чтобы вызывающий не испортил кэш
func cloneResult(r models.AnalysisResult) models.AnalysisResult {
	out := r
	out.Tips = append([]string(nil), r.Tips...)
	out.Alerts = append([]string{}, r.Alerts...)
	return out
}
