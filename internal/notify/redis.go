package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"healthsignal-service/internal/models"
)

const (
	// ChannelPrefix канал pub/sub уведомлений пользователя
	ChannelPrefix = "notifications:"
	// RecentKeyPrefix список последних уведомлений пользователя
	RecentKeyPrefix = "notifications:recent:"
)

// RedisNotifier публикует уведомления в канал пользователя и хранит последние
type RedisNotifier struct {
	client *redis.Client
	limit  int64
}

// NewRedisNotifier создает уведомитель поверх клиента Redis
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, limit: RecentLimit}
}

// Channel имя канала уведомлений пользователя
func Channel(userID string) string { return ChannelPrefix + userID }

func recentKey(userID string) string { return RecentKeyPrefix + userID }

// Notify публикует уведомление и добавляет его в список последних
func (r *RedisNotifier) Notify(ctx context.Context, userID, alert string) error {
	data, err := json.Marshal(newNotification(userID, alert))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, recentKey(userID), data)
		pipe.LTrim(ctx, recentKey(userID), 0, r.limit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if err := r.client.Publish(ctx, Channel(userID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Recent возвращает до n последних уведомлений
func (r *RedisNotifier) Recent(ctx context.Context, userID string, n int) ([]models.Notification, error) {
	if n <= 0 || int64(n) > r.limit {
		n = int(r.limit)
	}
	raw, err := r.client.LRange(ctx, recentKey(userID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	out := make([]models.Notification, 0, len(raw))
	for _, item := range raw {
		var note models.Notification
		if err := json.Unmarshal([]byte(item), &note); err != nil {
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

// Subscribe подписывается на уведомления пользователя
func (r *RedisNotifier) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	return r.client.Subscribe(ctx, Channel(userID))
}
