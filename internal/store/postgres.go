package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"healthsignal-service/internal/models"
)

// Schema таблицы для PostgreSQL
const Schema = `
CREATE TABLE IF NOT EXISTS health_samples (
	user_id            TEXT             NOT NULL,
	ts                 TIMESTAMPTZ      NOT NULL,
	heart_rate         DOUBLE PRECISION NOT NULL,
	resting_heart_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	steps              INTEGER          NOT NULL DEFAULT 0,
	calories           DOUBLE PRECISION NOT NULL DEFAULT 0,
	active_minutes     INTEGER          NOT NULL DEFAULT 0,
	hrv                DOUBLE PRECISION,
	spo2               DOUBLE PRECISION,
	PRIMARY KEY (user_id, ts)
);

CREATE TABLE IF NOT EXISTS sleep_records (
	user_id        TEXT             NOT NULL,
	day            DATE             NOT NULL,
	duration_hours DOUBLE PRECISION NOT NULL,
	quality_score  DOUBLE PRECISION NOT NULL,
	deep_minutes   INTEGER          NOT NULL DEFAULT 0,
	rem_minutes    INTEGER          NOT NULL DEFAULT 0,
	light_minutes  INTEGER          NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, day)
);

CREATE TABLE IF NOT EXISTS daily_analyses (
	id         TEXT        PRIMARY KEY,
	user_id    TEXT        NOT NULL,
	day        DATE        NOT NULL,
	record     JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS daily_analyses_user_day ON daily_analyses (user_id, day, created_at DESC);
`

const (
	insertSampleSQL = `
INSERT INTO health_samples (user_id, ts, heart_rate, resting_heart_rate, steps, calories, active_minutes, hrv, spo2)
VALUES (:user_id, :ts, :heart_rate, :resting_heart_rate, :steps, :calories, :active_minutes, :hrv, :spo2)
ON CONFLICT (user_id, ts) DO UPDATE SET
	heart_rate = EXCLUDED.heart_rate,
	resting_heart_rate = EXCLUDED.resting_heart_rate,
	steps = EXCLUDED.steps,
	calories = EXCLUDED.calories,
	active_minutes = EXCLUDED.active_minutes,
	hrv = EXCLUDED.hrv,
	spo2 = EXCLUDED.spo2`

	selectSamplesSQL = `
SELECT ts, heart_rate, resting_heart_rate, steps, calories, active_minutes, hrv, spo2
FROM health_samples
WHERE user_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts`

	upsertSleepSQL = `
INSERT INTO sleep_records (user_id, day, duration_hours, quality_score, deep_minutes, rem_minutes, light_minutes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, day) DO UPDATE SET
	duration_hours = EXCLUDED.duration_hours,
	quality_score = EXCLUDED.quality_score,
	deep_minutes = EXCLUDED.deep_minutes,
	rem_minutes = EXCLUDED.rem_minutes,
	light_minutes = EXCLUDED.light_minutes`

	selectSleepSQL = `
SELECT duration_hours, quality_score, deep_minutes, rem_minutes, light_minutes
FROM sleep_records WHERE user_id = $1 AND day = $2`

	selectAnalysisSQL = `
SELECT record FROM daily_analyses
WHERE user_id = $1 AND day = $2
ORDER BY created_at DESC LIMIT 1`

	insertAnalysisSQL = `
INSERT INTO daily_analyses (id, user_id, day, record, created_at)
VALUES ($1, $2, $3, $4, $5)`
)

// PostgresStore хранит данные в PostgreSQL
type PostgresStore struct {
	db  *sqlx.DB
	loc *time.Location
}

// sampleRow строка health_samples с идентификатором пользователя
type sampleRow struct {
	UserID string `db:"user_id"`
	models.Sample
}

// NewPostgresStore подключается к базе по DSN
func NewPostgresStore(ctx context.Context, dsn string, loc *time.Location) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return newPostgresStore(db, loc), nil
}

func newPostgresStore(db *sqlx.DB, loc *time.Location) *PostgresStore {
	if loc == nil {
		loc = time.Local
	}
	return &PostgresStore{db: db, loc: loc}
}

// Migrate создает таблицы, если их нет
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// AddSamples сохраняет измерения одной транзакцией.
// Время хранится с точностью до миллисекунды, как и в Redis.
func (p *PostgresStore) AddSamples(ctx context.Context, userID string, samples []models.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	unique := UniqueSamples(samples)
	rows := make([]sampleRow, len(unique))
	for i, s := range unique {
		s.Timestamp = s.Timestamp.Truncate(time.Millisecond)
		rows[i] = sampleRow{UserID: userID, Sample: s}
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, insertSampleSQL, row); err != nil {
			return fmt.Errorf("failed to store samples: %w", err)
		}
	}
	return tx.Commit()
}

// DailySamples возвращает измерения за календарный день
func (p *PostgresStore) DailySamples(ctx context.Context, userID string, day time.Time) ([]models.Sample, error) {
	return p.dailySamples(ctx, p.db, userID, day)
}

func (p *PostgresStore) dailySamples(ctx context.Context, q sqlx.QueryerContext, userID string, day time.Time) ([]models.Sample, error) {
	start, end := DayWindow(day, p.loc)
	samples := []models.Sample{}
	if err := sqlx.SelectContext(ctx, q, &samples, selectSamplesSQL, userID, start, end); err != nil {
		return nil, fmt.Errorf("failed to get samples: %w", err)
	}
	return samples, nil
}

// PutSleepRecord сохраняет запись сна
func (p *PostgresStore) PutSleepRecord(ctx context.Context, userID string, day time.Time, rec models.SleepRecord) error {
	_, err := p.db.ExecContext(ctx, upsertSleepSQL, userID, DateKey(day),
		rec.DurationHours, rec.QualityScore, rec.DeepMinutes, rec.RemMinutes, rec.LightMinutes)
	if err != nil {
		return fmt.Errorf("failed to store sleep record: %w", err)
	}
	return nil
}

// SleepRecord возвращает запись сна или nil
func (p *PostgresStore) SleepRecord(ctx context.Context, userID string, day time.Time) (*models.SleepRecord, error) {
	return p.sleepRecord(ctx, p.db, userID, day)
}

func (p *PostgresStore) sleepRecord(ctx context.Context, q sqlx.QueryerContext, userID string, day time.Time) (*models.SleepRecord, error) {
	var rec models.SleepRecord
	err := sqlx.GetContext(ctx, q, &rec, selectSleepSQL, userID, DateKey(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sleep record: %w", err)
	}
	return &rec, nil
}

// Analysis возвращает последний анализ за день или nil
func (p *PostgresStore) Analysis(ctx context.Context, userID string, day time.Time) (*models.DailyRecord, error) {
	return p.analysis(ctx, p.db, userID, day)
}

func (p *PostgresStore) analysis(ctx context.Context, q sqlx.QueryerContext, userID string, day time.Time) (*models.DailyRecord, error) {
	var raw []byte
	err := sqlx.GetContext(ctx, q, &raw, selectAnalysisSQL, userID, DateKey(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return decodeRecord(raw)
}

// LoadDay читает данные дня в одной read-only транзакции
func (p *PostgresStore) LoadDay(ctx context.Context, userID string, day time.Time) (models.DayData, error) {
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return models.DayData{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var out models.DayData
	if out.Samples, err = p.dailySamples(ctx, tx, userID, day); err != nil {
		return models.DayData{}, err
	}
	if out.Sleep, err = p.sleepRecord(ctx, tx, userID, day); err != nil {
		return models.DayData{}, err
	}
	if out.Existing, err = p.analysis(ctx, tx, userID, day); err != nil {
		return models.DayData{}, err
	}
	return out, tx.Commit()
}

// SaveAnalysis сохраняет запись целиком одной вставкой
func (p *PostgresStore) SaveAnalysis(ctx context.Context, rec models.DailyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, insertAnalysisSQL, rec.ID, rec.UserID, rec.Date, data, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с базой
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close закрывает пул соединений
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
