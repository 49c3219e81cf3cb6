package narrative

import (
	"bytes"
	"encoding/json"
	"strings"

	"healthsignal-service/internal/models"
)

// Text строковое поле ответа модели. Модели иногда возвращают вместо строки
// список или объект, такие значения приводятся к читаемому тексту.
type Text string

// UnmarshalJSON принимает строку, число, список или объект
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '[':
		var items []Text
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item != "" {
				parts = append(parts, string(item))
			}
		}
		*t = Text(strings.Join(parts, " "))
	case '{':
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err != nil {
			return err
		}
		*t = Text(compact.String())
	default:
		*t = Text(data)
	}
	return nil
}

// reply ответ сервиса или модели в свободной форме
type reply struct {
	Summary             Text   `json:"summary"`
	Action              Text   `json:"action"`
	BreakfastSuggestion Text   `json:"breakfastSuggestion"`
	IndicatorToWatch    Text   `json:"indicatorToWatch"`
	Alerts              []Text `json:"alerts"`
	SleepRemark         Text   `json:"sleepRemark"`
	SleepPractices      Text   `json:"sleepPractices"`
}

func (r reply) narrative() models.Narrative {
	alerts := make([]string, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		if a != "" {
			alerts = append(alerts, string(a))
		}
	}
	return models.Narrative{
		Summary:             string(r.Summary),
		Action:              string(r.Action),
		BreakfastSuggestion: string(r.BreakfastSuggestion),
		IndicatorToWatch:    string(r.IndicatorToWatch),
		Alerts:              alerts,
		SleepRemark:         string(r.SleepRemark),
		SleepPractices:      string(r.SleepPractices),
	}
}

// decodeReply разбирает JSON-ответ, отсутствующие поля остаются пустыми
func decodeReply(data []byte) (models.Narrative, error) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return models.Narrative{}, err
	}
	return r.narrative(), nil
}
