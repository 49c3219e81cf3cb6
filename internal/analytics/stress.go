package analytics

import (
	"github.com/montanaflynn/stats"

	"healthsignal-service/internal/models"
)

const (
	// HeartRateHigh средний пульс выше этого значения дает максимальный вклад
	HeartRateHigh = 100.0
	// HeartRateElevated средний пульс выше этого значения дает средний вклад
	HeartRateElevated = 80.0

	// SleepQualityPoor качество сна ниже этого значения считается плохим
	SleepQualityPoor = 50.0
	// SleepQualityFair качество сна ниже этого значения считается удовлетворительным
	SleepQualityFair = 70.0

	// StepsLow меньше этого количества шагов за день активность недостаточна
	StepsLow = 3000
	// StepsHigh больше этого количества шагов за день считается перегрузкой
	StepsHigh = 20000

	// калибровочный коэффициент сырого балла 0.7, хранится дробью, чтобы floor был точным
	DampeningNumerator   = 7
	DampeningDenominator = 10

	// MaxStressIndex верхняя граница индекса стресса
	MaxStressIndex = 100

	// HighStressThreshold индекс, начиная с которого уровень High
	HighStressThreshold = 70
	// ModerateStressThreshold индекс, начиная с которого уровень Moderate
	ModerateStressThreshold = 50
)

// StressIndex вычисляет индекс стресса 0..100 по пульсу, сну и активности.
// Пустой набор измерений дает 0, отсутствующий сон просто не учитывается.
func StressIndex(samples []models.Sample, sleep *models.SleepRecord) int {
	if len(samples) == 0 {
		return 0
	}

	raw := heartRateComponent(samples) + sleepComponent(sleep) + activityComponent(samples)

	index := raw * DampeningNumerator / DampeningDenominator
	if index < 0 {
		index = 0
	}
	if index > MaxStressIndex {
		index = MaxStressIndex
	}
	return index
}

func heartRateComponent(samples []models.Sample) int {
	rates := make([]float64, len(samples))
	for i, s := range samples {
		rates[i] = s.HeartRate
	}
	mean, err := stats.Mean(rates)
	if err != nil {
		return 0
	}

	switch {
	case mean > HeartRateHigh:
		return 30
	case mean > HeartRateElevated:
		return 15
	default:
		return 5
	}
}

func sleepComponent(sleep *models.SleepRecord) int {
	if sleep == nil {
		return 0
	}
	switch {
	case sleep.QualityScore < SleepQualityPoor:
		return 30
	case sleep.QualityScore < SleepQualityFair:
		return 15
	default:
		return 5
	}
}

func activityComponent(samples []models.Sample) int {
	total := TotalSteps(samples)
	switch {
	case total < StepsLow:
		return 20
	case total > StepsHigh:
		return 10
	default:
		return 5
	}
}

// TotalSteps суммирует шаги по всем измерениям
func TotalSteps(samples []models.Sample) int {
	total := 0
	for _, s := range samples {
		total += s.Steps
	}
	return total
}

// Classify переводит индекс стресса в категорию
func Classify(stressIndex int) models.StressLevel {
	switch {
	case stressIndex >= HighStressThreshold:
		return models.StressHigh
	case stressIndex >= ModerateStressThreshold:
		return models.StressModerate
	default:
		return models.StressLow
	}
}

var tipTable = map[models.StressLevel][3]string{
	models.StressLow: {
		"Keep up your current routine, it is working well.",
		"Stay hydrated and keep a regular sleep schedule.",
		"A short walk after meals helps maintain your balance.",
	},
	models.StressModerate: {
		"Take a 5-minute breathing break every couple of hours.",
		"Plan a light activity such as a 20-minute walk today.",
		"Limit caffeine after lunch to protect tonight's sleep.",
	},
	models.StressHigh: {
		"Pause now for a few minutes of slow, deep breathing.",
		"Reduce screen time tonight and aim for an early bedtime.",
		"Choose a calming activity such as stretching or a quiet walk.",
	},
}

// Tips возвращает три совета для уровня стресса
func Tips(level models.StressLevel) []string {
	tips, ok := tipTable[level]
	if !ok {
		tips = tipTable[models.StressLow]
	}
	out := make([]string, len(tips))
	copy(out, tips[:])
	return out
}
