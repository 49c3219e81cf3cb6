package analytics

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"healthsignal-service/internal/models"
)

const (
	// HRVDropRatio относительное падение HRV, при котором срабатывает алерт
	HRVDropRatio = 0.20
	// HRVMinSamples минимальное число измерений HRV для оценки тренда
	HRVMinSamples = 3
	// MinSleepHours меньше этого сна считается недостаточным
	MinSleepHours = 6.0
	// MinSpO2 средняя сатурация ниже этого значения считается низкой
	MinSpO2 = 94.0
	// MinActiveMinutes меньше этого числа активных минут за день день считается малоподвижным
	MinActiveMinutes = 120
)

// Input данные одного дня пользователя для правил
type Input struct {
	Samples []models.Sample
	Sleep   *models.SleepRecord
}

// Rule проверяет одно пороговое условие и возвращает текст алерта
type Rule func(in Input) (alert string, triggered bool)

// DefaultRules правила в порядке вычисления
var DefaultRules = []Rule{
	HRVDropRule,
	SleepDurationRule,
	LowSpO2Rule,
	SedentaryRule,
}

// Alerts вычисляет алерты по правилам DefaultRules; день без измерений алертов не дает
func Alerts(samples []models.Sample, sleep *models.SleepRecord) []string {
	if len(samples) == 0 {
		return []string{}
	}
	return EvaluateRules(DefaultRules, Input{Samples: samples, Sleep: sleep})
}

// EvaluateRules применяет правила по порядку и собирает сработавшие
func EvaluateRules(rules []Rule, in Input) []string {
	alerts := []string{}
	for _, rule := range rules {
		if alert, ok := rule(in); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// HRVDropRule сравнивает среднее HRV первой и второй половины дня
func HRVDropRule(in Input) (string, bool) {
	values := hrvValues(in.Samples)
	if len(values) < HRVMinSamples {
		return "", false
	}

	mid := len(values) / 2
	baseline, err := stats.Mean(values[:mid])
	if err != nil || baseline <= 0 {
		return "", false
	}
	recent, err := stats.Mean(values[mid:])
	if err != nil {
		return "", false
	}

	if (baseline-recent)/baseline > HRVDropRatio {
		return "HRV dropped more than 20% - possible stress or overtraining", true
	}
	return "", false
}

// SleepDurationRule срабатывает при сне короче шести часов
func SleepDurationRule(in Input) (string, bool) {
	if in.Sleep == nil || in.Sleep.DurationHours >= MinSleepHours {
		return "", false
	}
	return fmt.Sprintf("Sleep duration low: %.1fh (recommended: 7-9h)", in.Sleep.DurationHours), true
}

// LowSpO2Rule срабатывает при средней сатурации ниже 94%
func LowSpO2Rule(in Input) (string, bool) {
	mean, ok := MeanSpO2(in.Samples)
	if !ok || mean >= MinSpO2 {
		return "", false
	}
	return fmt.Sprintf("Low blood oxygen: %.1f%% (normal: >95%%)", mean), true
}

// SedentaryRule срабатывает, если за день набралось меньше двух активных часов
func SedentaryRule(in Input) (string, bool) {
	if len(in.Samples) == 0 {
		return "", false
	}
	if TotalActiveMinutes(in.Samples) >= MinActiveMinutes {
		return "", false
	}
	return "Very low activity detected - try to move more throughout the day", true
}

// MeanSpO2 среднее по измерениям, где есть сатурация
func MeanSpO2(samples []models.Sample) (float64, bool) {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.SpO2 != nil {
			values = append(values, *s.SpO2)
		}
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return mean, true
}

// TotalActiveMinutes суммирует активные минуты
func TotalActiveMinutes(samples []models.Sample) int {
	total := 0
	for _, s := range samples {
		total += s.ActiveMinutes
	}
	return total
}

func hrvValues(samples []models.Sample) []float64 {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.HRV != nil {
			values = append(values, *s.HRV)
		}
	}
	return values
}
