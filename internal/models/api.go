package models

import "time"

// SamplesBatch пакет измерений для массовой загрузки
type SamplesBatch struct {
	Samples []Sample `json:"samples"`
}

// IngestResponse ответ на загрузку измерений
type IngestResponse struct {
	Accepted int  `json:"accepted"`
	Queued   bool `json:"queued"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	SamplesReceived   int64 `json:"samples_received"`
	AnalysesCompleted int64 `json:"analyses_completed"`
	AlertsRaised      int64 `json:"alerts_raised"`
	QueuedRefreshes   int   `json:"queued_refreshes"`
}

// Notification уведомление пользователя об одном алерте
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Alert     string    `json:"alert"`
	CreatedAt time.Time `json:"createdAt"`
}
