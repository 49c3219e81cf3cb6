package narrative

import (
	"fmt"
	"strconv"
	"strings"

	"healthsignal-service/internal/models"
)

// SleepQualityDescription словесная оценка сна для карточки сна
func SleepQualityDescription(sleep *models.SleepRecord) string {
	if sleep == nil {
		return ""
	}
	score, duration := sleep.QualityScore, sleep.DurationHours
	switch {
	case score >= 85 && duration >= 7:
		return "excellent and restful"
	case score >= 70:
		return "good"
	case score >= 50 && duration < 6:
		return "short and likely interrupted"
	case score >= 50:
		return "fair, possibly light"
	case duration < 5:
		return "very poor and short"
	default:
		return "poor and likely fitful"
	}
}

// BuildPrompt собирает промпт с данными дня и форматом ответа
func BuildPrompt(req models.HealthAnalysisRequest, stats models.DailyStats, alerts []string) string {
	var b strings.Builder

	b.WriteString("You are a health AI coach. Analyze this user's daily health data and provide brief, actionable advice.\n\n")

	profile := models.UserProfile{}
	if req.UserProfile != nil {
		profile = *req.UserProfile
	}
	b.WriteString("**User Profile:**\n")
	fmt.Fprintf(&b, "- Gender: %s\n", orDefault(profile.Gender, "Not specified"))
	if profile.WeightKg > 0 {
		fmt.Fprintf(&b, "- Weight: %s kg\n", strconv.FormatFloat(profile.WeightKg, 'f', -1, 64))
	} else {
		b.WriteString("- Weight: Not specified kg\n")
	}
	fmt.Fprintf(&b, "- Goal: %s\n\n", orDefault(profile.Goal, "General health"))

	b.WriteString("**Today's Data (24h):**\n")
	if s := req.SleepData; s != nil {
		b.WriteString("Sleep last night:\n")
		fmt.Fprintf(&b, "- Duration: %.1fh\n", s.DurationHours)
		fmt.Fprintf(&b, "- Quality score: %.0f/100\n", s.QualityScore)
		fmt.Fprintf(&b, "- Deep sleep: %d min\n", s.DeepMinutes)
		fmt.Fprintf(&b, "- REM sleep: %d min\n\n", s.RemMinutes)
	}
	fmt.Fprintf(&b, "- Resting HR: %.0f bpm\n", stats.AvgRestingHR)
	if stats.MedianHRV != nil {
		fmt.Fprintf(&b, "- HRV median: %.0f ms\n", *stats.MedianHRV)
	} else {
		b.WriteString("- HRV median: Not available\n")
	}
	fmt.Fprintf(&b, "- Total steps: %s\n", groupThousands(stats.TotalSteps))
	fmt.Fprintf(&b, "- Calories burned: %.0f kcal\n", stats.TotalCalories)
	fmt.Fprintf(&b, "- Active time: %d min\n", stats.TotalActiveMinutes)
	if stats.AvgSpO2 != nil {
		fmt.Fprintf(&b, "- Blood oxygen (SpO2): %.1f%%\n", *stats.AvgSpO2)
	} else {
		b.WriteString("- Blood oxygen (SpO2): Not available\n")
	}
	fmt.Fprintf(&b, "- Estimated stress: %.1f/10\n\n", stats.StressEstimate)

	b.WriteString("**Alerts:**\n")
	if len(alerts) == 0 {
		b.WriteString("No critical alerts\n")
	}
	for _, a := range alerts {
		fmt.Fprintf(&b, "- %s\n", a)
	}

	quality := SleepQualityDescription(req.SleepData)
	b.WriteString("\nProvide a brief analysis in JSON format:\n\n{\n")
	b.WriteString(`    "summary": "One sentence describing today's health state",` + "\n")
	b.WriteString(`    "action": "One concrete action to take today",` + "\n")
	b.WriteString(`    "breakfastSuggestion": "Brief breakfast recommendation based on data",` + "\n")
	b.WriteString(`    "indicatorToWatch": "Which metric to monitor (HR, HRV, steps, etc.)",` + "\n")
	fmt.Fprintf(&b, `    "sleepRemark": "A short, encouraging sentence for the sleep card, in the format: 'Your sleep quality was %s. Let's start a day with a ... breakfast'.",`+"\n", quality)
	b.WriteString(`    "sleepPractices": "If sleep was poor or decent, provide 2-3 bullet-pointed tips to improve it. If sleep was excellent, provide a brief encouraging message about maintaining good habits. Use \n for new lines."` + "\n")
	b.WriteString("}\n")
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// groupThousands форматирует 12345 как 12,345
func groupThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
