package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"healthsignal-service/internal/models"
)

// Client вызывает внешний сервис рекомендаций POST-запросом
type Client struct {
	url  string
	http *http.Client
}

// NewClient создает клиент; timeout ограничивает весь HTTP-вызов
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Narrate отправляет данные дня и разбирает ответ
func (c *Client) Narrate(ctx context.Context, req models.HealthAnalysisRequest) (models.Narrative, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.Narrative{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.Narrative{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return models.Narrative{}, fmt.Errorf("narrative request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Narrative{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Narrative{}, fmt.Errorf("narrative http %d: %s", resp.StatusCode, string(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.Narrative{}, ErrEmptyResponse
	}

	n, err := decodeReply(raw)
	if err != nil {
		return models.Narrative{}, fmt.Errorf("invalid narrative response: %w", err)
	}
	return n, nil
}
