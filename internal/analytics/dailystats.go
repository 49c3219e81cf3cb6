package analytics

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"healthsignal-service/internal/models"
)

// MaxStressEstimate верхняя граница оценки стресса по разбросу HRV
const MaxStressEstimate = 10.0

// ComputeDailyStats считает сводную статистику дня для промпта и отчета
func ComputeDailyStats(samples []models.Sample) models.DailyStats {
	out := models.DailyStats{
		TotalSteps:         TotalSteps(samples),
		TotalActiveMinutes: TotalActiveMinutes(samples),
	}
	if len(samples) == 0 {
		return out
	}

	hr := make([]float64, len(samples))
	resting := make([]float64, len(samples))
	for i, s := range samples {
		hr[i] = s.HeartRate
		resting[i] = s.RestingHeartRate
		out.TotalCalories += s.Calories
	}
	out.AvgHeartRate = round1(mustMean(hr))
	out.AvgRestingHR = round1(mustMean(resting))
	out.TotalCalories = round1(out.TotalCalories)

	if spo2, ok := MeanSpO2(samples); ok {
		v := round1(spo2)
		out.AvgSpO2 = &v
	}

	values := hrvValues(samples)
	if len(values) > 0 {
		median := upperMedian(values)
		out.MedianHRV = &median
		out.StressEstimate = round1(HRVStressEstimate(values, median))
	}
	return out
}

// HRVStressEstimate оценивает стресс 0..10 по среднему квадрату отклонения HRV от медианы
func HRVStressEstimate(values []float64, median float64) float64 {
	if len(values) == 0 {
		return 0
	}
	dispersion := stat.MomentAbout(2, values, median, nil)
	return math.Min(MaxStressEstimate, dispersion/10)
}

// верхняя медиана: для четного числа значений берется правый из двух средних элементов
func upperMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

func mustMean(values []float64) float64 {
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}

func round1(v float64) float64 {
	r, err := stats.Round(v, 1)
	if err != nil {
		return v
	}
	return r
}
