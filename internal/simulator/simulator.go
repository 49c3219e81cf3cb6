// Package simulator генерирует правдоподобные данные умных часов с суточным ритмом
package simulator

import (
	"math"
	"math/rand"
	"time"

	"healthsignal-service/internal/models"
)

// Phase коэффициенты для времени суток
type Phase struct {
	HRMultiplier  float64
	HRVMultiplier float64
	Activity      float64
	Sleeping      bool
}

// PhaseAt возвращает коэффициенты суточного ритма для момента t
func PhaseAt(t time.Time) Phase {
	hour := t.Hour()
	decimal := float64(hour) + float64(t.Minute())/60

	switch {
	case hour >= 23 || hour < 7:
		return Phase{HRMultiplier: 0.75, HRVMultiplier: 1.3, Activity: 0, Sleeping: true}
	case hour < 9:
		wake := (decimal - 7) / 2
		return Phase{HRMultiplier: 0.75 + 0.25*wake, HRVMultiplier: 1.3 - 0.3*wake, Activity: wake * 0.3}
	case hour < 12:
		return Phase{HRMultiplier: 1.1, HRVMultiplier: 0.95, Activity: 0.6}
	case hour < 14:
		return Phase{HRMultiplier: 0.95, HRVMultiplier: 1.05, Activity: 0.3}
	case hour < 18:
		return Phase{HRMultiplier: 1.15, HRVMultiplier: 0.85, Activity: 0.8}
	case hour < 21:
		wind := (decimal - 18) / 3
		return Phase{HRMultiplier: 1.1 - 0.2*wind, HRVMultiplier: 0.9 + 0.2*wind, Activity: 0.5 - 0.3*wind}
	default:
		return Phase{HRMultiplier: 0.85, HRVMultiplier: 1.15, Activity: 0.1}
	}
}

// Generator создает измерения одного пользователя
type Generator struct {
	rnd          *rand.Rand
	interval     time.Duration
	baseResting  float64
	baseHRV      float64
	activeCredit float64
}

// NewGenerator создает генератор; interval шаг между измерениями
func NewGenerator(seed int64, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Generator{
		rnd:         rand.New(rand.NewSource(seed)),
		interval:    interval,
		baseResting: 60,
		baseHRV:     50,
	}
}

// Sample генерирует измерение на момент t
func (g *Generator) Sample(t time.Time) models.Sample {
	phase := PhaseAt(t)
	minutes := g.interval.Minutes()

	hr := g.baseResting*phase.HRMultiplier + g.rnd.NormFloat64()*2
	resting := g.baseResting + g.rnd.NormFloat64()
	hrv := g.baseHRV*phase.HRVMultiplier + g.rnd.NormFloat64()*3
	spo2 := clamp(97+g.rnd.NormFloat64()*0.5, 94, 100)

	steps := int(phase.Activity * (100 + g.rnd.Float64()*200) * minutes)
	calories := (1.2 + phase.Activity*5) * minutes

	// активные минуты копятся дробно, чтобы короткий шаг не обнулял их
	g.activeCredit += phase.Activity * minutes
	active := int(g.activeCredit)
	g.activeCredit -= float64(active)

	hrvRounded := round1(clamp(hrv, 20, 100))
	spo2Rounded := round1(spo2)
	return models.Sample{
		Timestamp:        t,
		HeartRate:        round1(clamp(hr, 45, 120)),
		RestingHeartRate: round1(clamp(resting, 50, 75)),
		Steps:            steps,
		Calories:         round1(calories),
		ActiveMinutes:    active,
		HRV:              &hrvRounded,
		SpO2:             &spo2Rounded,
	}
}

// Day генерирует измерения за сутки, начиная с полуночи дня day
func (g *Generator) Day(day time.Time) []models.Sample {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	samples := make([]models.Sample, 0, int(24*time.Hour/g.interval))
	for t := start; t.Before(end); t = t.Add(g.interval) {
		samples = append(samples, g.Sample(t))
	}
	return samples
}

// Sleep генерирует запись сна за ночь
func (g *Generator) Sleep() models.SleepRecord {
	duration := clamp(7.5+g.rnd.NormFloat64()*0.5, 5.5, 9.5)
	quality := clamp(70+(duration-6)*5+g.rnd.NormFloat64()*5, 40, 100)

	total := duration * 60
	deep := 0.15 + (g.rnd.Float64()*0.06 - 0.03)
	rem := 0.25 + (g.rnd.Float64()*0.1 - 0.05)
	light := 1 - deep - rem

	return models.SleepRecord{
		DurationHours: math.Round(duration*100) / 100,
		QualityScore:  round1(quality),
		DeepMinutes:   int(total * deep),
		RemMinutes:    int(total * rem),
		LightMinutes:  int(total * light),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
