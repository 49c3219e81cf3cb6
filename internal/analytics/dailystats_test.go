package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsignal-service/internal/models"
)

func TestComputeDailyStats_Empty(t *testing.T) {
	stats := ComputeDailyStats(nil)
	assert.Equal(t, models.DailyStats{}, stats)
}

func TestComputeDailyStats(t *testing.T) {
	samples := samplesWithHR(60, 70, 80, 90)
	for i := range samples {
		samples[i].RestingHeartRate = 58
		samples[i].Steps = 100 * (i + 1)
		samples[i].Calories = 1.25
		samples[i].ActiveMinutes = 1
	}
	samples[0].HRV = ptr(40)
	samples[1].HRV = ptr(50)
	samples[2].HRV = ptr(60)
	samples[3].SpO2 = ptr(97.26)

	stats := ComputeDailyStats(samples)
	assert.Equal(t, 75.0, stats.AvgHeartRate)
	assert.Equal(t, 58.0, stats.AvgRestingHR)
	assert.Equal(t, 1000, stats.TotalSteps)
	assert.Equal(t, 5.0, stats.TotalCalories)
	assert.Equal(t, 4, stats.TotalActiveMinutes)

	require.NotNil(t, stats.AvgSpO2)
	assert.Equal(t, 97.3, *stats.AvgSpO2)

	require.NotNil(t, stats.MedianHRV)
	assert.Equal(t, 50.0, *stats.MedianHRV)
	// ((40-50)^2 + 0 + (60-50)^2) / 3 / 10
	assert.InDelta(t, 6.7, stats.StressEstimate, 0.001)
}

func TestHRVStressEstimate_Capped(t *testing.T) {
	assert.Equal(t, MaxStressEstimate, HRVStressEstimate([]float64{10, 100, 200}, 100))
	assert.Equal(t, 0.0, HRVStressEstimate(nil, 0))
}

func TestUpperMedian(t *testing.T) {
	assert.Equal(t, 3.0, upperMedian([]float64{4, 1, 3, 2}))
	assert.Equal(t, 2.0, upperMedian([]float64{3, 1, 2}))
	assert.Zero(t, upperMedian(nil))

	// the input order is left untouched
	values := []float64{5, 1, 4}
	upperMedian(values)
	assert.Equal(t, []float64{5, 1, 4}, values)
}
