package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"healthsignal-service/internal/models"
)

const (
	// SamplesKeyPrefix префикс sorted set измерений пользователя (score = unix ms)
	SamplesKeyPrefix = "samples:"
	// SleepKeyPrefix префикс записи сна за день
	SleepKeyPrefix = "sleep:"
	// AnalysisKeyPrefix префикс анализа по идентификатору {userId}_{epochMillis}
	AnalysisKeyPrefix = "analysis:"
	// DayAnalysisKeyPrefix префикс анализа по дню пользователя
	DayAnalysisKeyPrefix = "analysis:day:"

	// SamplesTotalKey счетчик принятых измерений
	SamplesTotalKey = "stats:samples:total"
	// AnalysesTotalKey счетчик сохраненных анализов
	AnalysesTotalKey = "stats:analyses:total"

	// SamplesTTL время жизни сырых измерений
	SamplesTTL = 30 * 24 * time.Hour
)

// RedisStore хранит данные пользователей в Redis
type RedisStore struct {
	client *redis.Client
	loc    *time.Location
}

// NewRedisClient создает подключение к Redis и проверяет его
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore создает хранилище поверх готового клиента
func NewRedisStore(client *redis.Client, loc *time.Location) *RedisStore {
	if loc == nil {
		loc = time.Local
	}
	return &RedisStore{client: client, loc: loc}
}

// Client возвращает клиент Redis для смежных компонентов (уведомления)
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func samplesKey(userID string) string { return SamplesKeyPrefix + userID }

func sleepKey(userID, date string) string { return SleepKeyPrefix + userID + ":" + date }

func dayAnalysisKey(userID, date string) string { return DayAnalysisKeyPrefix + userID + ":" + date }

// AddSamples сохраняет измерения пользователя; измерение с тем же моментом времени заменяет прежнее
func (r *RedisStore) AddSamples(ctx context.Context, userID string, samples []models.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	unique := UniqueSamples(samples)
	members := make([]*redis.Z, 0, len(unique))
	for _, s := range unique {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		members = append(members, &redis.Z{Score: float64(s.Timestamp.UnixMilli()), Member: data})
	}

	key := samplesKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			score := strconv.FormatFloat(m.Score, 'f', -1, 64)
			pipe.ZRemRangeByScore(ctx, key, score, score)
		}
		pipe.ZAdd(ctx, key, members...)
		pipe.Expire(ctx, key, SamplesTTL)
		pipe.IncrBy(ctx, SamplesTotalKey, int64(len(samples)))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store samples: %w", err)
	}
	return nil
}

func (r *RedisStore) samplesRange(day time.Time) *redis.ZRangeBy {
	start, end := DayWindow(day, r.loc)
	return &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", start.UnixMilli()),
		Max: fmt.Sprintf("(%d", end.UnixMilli()),
	}
}

// DailySamples возвращает измерения за календарный день по времени
func (r *RedisStore) DailySamples(ctx context.Context, userID string, day time.Time) ([]models.Sample, error) {
	data, err := r.client.ZRangeByScore(ctx, samplesKey(userID), r.samplesRange(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get samples: %w", err)
	}
	return decodeSamples(data)
}

// PutSleepRecord сохраняет запись сна за день
func (r *RedisStore) PutSleepRecord(ctx context.Context, userID string, day time.Time, rec models.SleepRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal sleep record: %w", err)
	}
	if err := r.client.Set(ctx, sleepKey(userID, DateKey(day)), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store sleep record: %w", err)
	}
	return nil
}

// SleepRecord возвращает запись сна или nil, если ее нет
func (r *RedisStore) SleepRecord(ctx context.Context, userID string, day time.Time) (*models.SleepRecord, error) {
	data, err := r.client.Get(ctx, sleepKey(userID, DateKey(day))).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sleep record: %w", err)
	}
	var rec models.SleepRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode sleep record: %w", err)
	}
	return &rec, nil
}

// Analysis возвращает сохраненный анализ за день или nil
func (r *RedisStore) Analysis(ctx context.Context, userID string, day time.Time) (*models.DailyRecord, error) {
	data, err := r.client.Get(ctx, dayAnalysisKey(userID, DateKey(day))).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return decodeRecord(data)
}

// LoadDay читает измерения, сон и готовый анализ за один round trip
func (r *RedisStore) LoadDay(ctx context.Context, userID string, day time.Time) (models.DayData, error) {
	date := DateKey(day)

	pipe := r.client.Pipeline()
	samplesCmd := pipe.ZRangeByScore(ctx, samplesKey(userID), r.samplesRange(day))
	sleepCmd := pipe.Get(ctx, sleepKey(userID, date))
	analysisCmd := pipe.Get(ctx, dayAnalysisKey(userID, date))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return models.DayData{}, fmt.Errorf("failed to load day: %w", err)
	}

	if err := samplesCmd.Err(); err != nil {
		return models.DayData{}, fmt.Errorf("failed to get samples: %w", err)
	}

	var out models.DayData
	var err error
	if out.Samples, err = decodeSamples(samplesCmd.Val()); err != nil {
		return models.DayData{}, err
	}

	if data, err := sleepCmd.Bytes(); err == nil {
		var rec models.SleepRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return models.DayData{}, fmt.Errorf("failed to decode sleep record: %w", err)
		}
		out.Sleep = &rec
	} else if err != redis.Nil {
		return models.DayData{}, fmt.Errorf("failed to get sleep record: %w", err)
	}

	if data, err := analysisCmd.Bytes(); err == nil {
		if out.Existing, err = decodeRecord(data); err != nil {
			return models.DayData{}, err
		}
	} else if err != redis.Nil {
		return models.DayData{}, fmt.Errorf("failed to get analysis: %w", err)
	}

	return out, nil
}

// SaveAnalysis атомарно сохраняет запись и индекс по дню (MULTI/EXEC)
func (r *RedisStore) SaveAnalysis(ctx context.Context, rec models.DailyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, AnalysisKeyPrefix+rec.ID, data, 0)
		pipe.Set(ctx, dayAnalysisKey(rec.UserID, rec.Date), data, 0)
		pipe.Incr(ctx, AnalysesTotalKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// AnalysisByID возвращает анализ по идентификатору или nil
func (r *RedisStore) AnalysisByID(ctx context.Context, id string) (*models.DailyRecord, error) {
	data, err := r.client.Get(ctx, AnalysisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return decodeRecord(data)
}

// IncrementCounter увеличивает счетчик
func (r *RedisStore) IncrementCounter(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisStore) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// FlushDB очищает базу (только для тестов)
func (r *RedisStore) FlushDB(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func decodeSamples(data []string) ([]models.Sample, error) {
	samples := make([]models.Sample, 0, len(data))
	for _, d := range data {
		var s models.Sample
		if err := json.Unmarshal([]byte(d), &s); err != nil {
			return nil, fmt.Errorf("failed to decode sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func decodeRecord(data []byte) (*models.DailyRecord, error) {
	var rec models.DailyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &rec, nil
}
