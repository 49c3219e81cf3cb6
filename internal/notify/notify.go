// Package notify доставляет пользователю уведомления об алертах
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthsignal-service/internal/logger"
	"healthsignal-service/internal/models"
)

// RecentLimit сколько последних уведомлений хранится на пользователя
const RecentLimit = 50

// Notifier отправляет одно уведомление на один алерт
type Notifier interface {
	Notify(ctx context.Context, userID, alert string) error
}

// History отдает последние уведомления пользователя, новые первыми
type History interface {
	Recent(ctx context.Context, userID string, n int) ([]models.Notification, error)
}

func newNotification(userID, alert string) models.Notification {
	return models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Alert:     alert,
		CreatedAt: time.Now().UTC(),
	}
}

// LogNotifier пишет уведомления в лог
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier создает уведомитель поверх логгера
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify логирует алерт
func (l *LogNotifier) Notify(_ context.Context, userID, alert string) error {
	l.log.Infof("Alert for user %s: %s", userID, alert)
	return nil
}

// MemoryNotifier хранит последние уведомления в памяти
type MemoryNotifier struct {
	mu    sync.Mutex
	limit int
	byUID map[string][]models.Notification
}

// NewMemoryNotifier создает хранилище на limit уведомлений на пользователя
func NewMemoryNotifier(limit int) *MemoryNotifier {
	if limit <= 0 {
		limit = RecentLimit
	}
	return &MemoryNotifier{limit: limit, byUID: make(map[string][]models.Notification)}
}

// Notify добавляет уведомление в начало списка
func (m *MemoryNotifier) Notify(_ context.Context, userID, alert string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append([]models.Notification{newNotification(userID, alert)}, m.byUID[userID]...)
	if len(list) > m.limit {
		list = list[:m.limit]
	}
	m.byUID[userID] = list
	return nil
}

// Recent возвращает до n последних уведомлений
func (m *MemoryNotifier) Recent(_ context.Context, userID string, n int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.byUID[userID]
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	return append([]models.Notification{}, list[:n]...), nil
}

// Multi рассылает уведомление всем получателям
type Multi []Notifier

// Notify вызывает каждого получателя и собирает ошибки
func (m Multi) Notify(ctx context.Context, userID, alert string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
