// Package models содержит структуры данных для биометрических показателей и результатов анализа
package models

import "time"

// DateLayout формат календарного дня пользователя
const DateLayout = "2006-01-02"

// Sample представляет одно биометрическое измерение с часов
type Sample struct {
	Timestamp        time.Time `json:"timestamp" db:"ts"`
	HeartRate        float64   `json:"heartRate" db:"heart_rate"`
	RestingHeartRate float64   `json:"restingHeartRate,omitempty" db:"resting_heart_rate"`
	Steps            int       `json:"steps" db:"steps"`
	Calories         float64   `json:"calories" db:"calories"`
	ActiveMinutes    int       `json:"activeMinutes" db:"active_minutes"`
	// HRV есть только у часов с датчиком вариабельности, в расчет индекса стресса не входит
	HRV  *float64 `json:"hrv,omitempty" db:"hrv"`
	SpO2 *float64 `json:"spo2,omitempty" db:"spo2"`
}

// SleepRecord агрегированные данные сна за ночь
type SleepRecord struct {
	DurationHours float64 `json:"durationHours" db:"duration_hours"`
	QualityScore  float64 `json:"qualityScore" db:"quality_score"`
	DeepMinutes   int     `json:"deepSleepMinutes" db:"deep_minutes"`
	RemMinutes    int     `json:"remSleepMinutes" db:"rem_minutes"`
	LightMinutes  int     `json:"lightSleepMinutes" db:"light_minutes"`
}

// StressLevel категория стресса
type StressLevel string

const (
	StressLow      StressLevel = "Low"
	StressModerate StressLevel = "Moderate"
	StressHigh     StressLevel = "High"
)

// AnalysisResult содержит численный результат анализа дня
type AnalysisResult struct {
	StressIndex int         `json:"stressIndex"`
	StressLevel StressLevel `json:"stressLevel"`
	Tips        []string    `json:"tips"`
	Alerts      []string    `json:"alerts"`
}

// Narrative текстовые рекомендации, сгенерированные языковой моделью
type Narrative struct {
	Summary             string   `json:"summary"`
	Action              string   `json:"action"`
	BreakfastSuggestion string   `json:"breakfastSuggestion"`
	IndicatorToWatch    string   `json:"indicatorToWatch"`
	Alerts              []string `json:"alerts"`
	SleepRemark         string   `json:"sleepRemark"`
	SleepPractices      string   `json:"sleepPractices"`
}

// IsEmpty сообщает, что ни одно текстовое поле не заполнено
func (n Narrative) IsEmpty() bool {
	return n.Summary == "" && n.Action == "" && n.BreakfastSuggestion == "" &&
		n.IndicatorToWatch == "" && n.SleepRemark == "" && n.SleepPractices == ""
}

// DailyStats дневная статистика, которая передается в промпт
type DailyStats struct {
	AvgHeartRate       float64  `json:"avgHeartRate"`
	AvgRestingHR       float64  `json:"avgRestingHR"`
	MedianHRV          *float64 `json:"medianHRV,omitempty"`
	TotalSteps         int      `json:"totalSteps"`
	TotalCalories      float64  `json:"totalCalories"`
	TotalActiveMinutes int      `json:"totalActiveMinutes"`
	AvgSpO2            *float64 `json:"avgSpO2,omitempty"`
	StressEstimate     float64  `json:"stressLevel"`
}

// DailyRecord объединенная запись анализа за день, которая сохраняется в хранилище
type DailyRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	AnalysisResult
	Narrative  Narrative  `json:"narrative"`
	DailyStats DailyStats `json:"dailyStats"`
}

// DayData все, что хранилище отдает за один запрос по дню пользователя
type DayData struct {
	Samples  []Sample
	Sleep    *SleepRecord
	Existing *DailyRecord
}

// UserProfile профиль пользователя для персонализации рекомендаций
type UserProfile struct {
	Gender   string  `json:"gender,omitempty"`
	WeightKg float64 `json:"weight,omitempty"`
	HeightCm float64 `json:"height,omitempty"`
	Goal     string  `json:"goal,omitempty"`
}

// HealthAnalysisRequest тело запроса к сервису текстовых рекомендаций
type HealthAnalysisRequest struct {
	UserID      string       `json:"userId"`
	Date        string       `json:"date"`
	Metrics     []Sample     `json:"metrics"`
	SleepData   *SleepRecord `json:"sleepData,omitempty"`
	UserProfile *UserProfile `json:"userProfile,omitempty"`
}

// HealthAnalysisResponse ответ сервиса текстовых рекомендаций
type HealthAnalysisResponse struct {
	Narrative
	DailyStats DailyStats `json:"dailyStats"`
}
