// Package analysis выполняет анализ дня пользователя целиком: читает данные из хранилища,
// считает численный результат, рассылает уведомления, запрашивает текстовые
// рекомендации и сохраняет объединенную запись.
package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"healthsignal-service/internal/analytics"
	"healthsignal-service/internal/logger"
	"healthsignal-service/internal/metrics"
	"healthsignal-service/internal/models"
	"healthsignal-service/internal/notify"
	"healthsignal-service/internal/store"
)

// DefaultNarrativeTimeout ограничение на генерацию рекомендаций
const DefaultNarrativeTimeout = 20 * time.Second

// Narrator генерирует текстовые рекомендации по данным дня
type Narrator interface {
	Narrate(ctx context.Context, req models.HealthAnalysisRequest) (models.Narrative, error)
}

// StoreError ошибка чтения или записи хранилища
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Option настраивает Orchestrator
type Option func(*Orchestrator)

// WithClock задает источник времени для идентификаторов записей
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithNarrativeTimeout задает ограничение на вызов Narrator
func WithNarrativeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger задает логгер
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMemo задает общий кэш численных результатов
func WithMemo(m *analytics.Memo) Option {
	return func(o *Orchestrator) { o.memo = m }
}

// Orchestrator выполняет анализ дня пользователя
type Orchestrator struct {
	store    store.Store
	narrator Narrator
	notifier notify.Notifier
	memo     *analytics.Memo
	clock    func() time.Time
	timeout  time.Duration
	log      *logger.Logger
	group    singleflight.Group
}

// New создает оркестратор. narrator и notifier могут быть nil:
// без narrator записи не сохраняются, без notifier уведомления не отправляются.
func New(st store.Store, narrator Narrator, notifier notify.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		narrator: narrator,
		notifier: notifier,
		clock:    time.Now,
		timeout:  DefaultNarrativeTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.memo == nil {
		o.memo = analytics.NewMemo(analytics.DefaultMemoSize)
	}
	return o
}

// Run анализирует день пользователя. Численный результат и уведомления считаются
// на каждый вызов; генерация рекомендаций и запись для одного дня объединяются
// между одновременными вызовами и выполняются один раз.
// При ошибке сохранения вместе с *StoreError возвращается рассчитанная запись.
func (o *Orchestrator) Run(ctx context.Context, userID string, day time.Time) (models.DailyRecord, error) {
	start := time.Now()

	data, err := o.store.LoadDay(ctx, userID, day)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		return models.DailyRecord{}, &StoreError{Op: "load", Err: err}
	}

	result := o.memo.Analyze(data.Samples, data.Sleep)
	rec := models.DailyRecord{
		UserID:         userID,
		Date:           store.DateKey(day),
		AnalysisResult: result,
		Narrative:      models.Narrative{Alerts: []string{}},
		DailyStats:     analytics.ComputeDailyStats(data.Samples),
	}
	metrics.UpdateAnalysisMetrics(result, time.Since(start))
	o.log.Debugf("Analysis for %s on %s: index=%d level=%s alerts=%d",
		userID, rec.Date, result.StressIndex, result.StressLevel, len(result.Alerts))

	o.notifyAlerts(ctx, userID, result.Alerts)

	if data.Existing != nil {
		applyGenerated(&rec, generated{
			id:        data.Existing.ID,
			createdAt: data.Existing.CreatedAt,
			narrative: data.Existing.Narrative,
		})
		return rec, nil
	}
	if len(data.Samples) == 0 || o.narrator == nil {
		return rec, nil
	}

	// общая часть не зависит от отмены контекста того вызова, который ее запустил
	shared := context.WithoutCancel(ctx)
	ch := o.group.DoChan(userID+":"+rec.Date, func() (interface{}, error) {
		return o.generate(shared, rec, day, data)
	})

	select {
	case res := <-ch:
		g, _ := res.Val.(generated)
		applyGenerated(&rec, g)
		return rec, res.Err
	case <-ctx.Done():
		return rec, ctx.Err()
	}
}

// generated итог общей части: рекомендации и идентификатор сохраненной записи
type generated struct {
	id        string
	createdAt time.Time
	narrative models.Narrative
}

// generate запрашивает рекомендации и сохраняет объединенную запись
func (o *Orchestrator) generate(ctx context.Context, rec models.DailyRecord, day time.Time, data models.DayData) (generated, error) {
	// запись могла появиться, пока этот вызов читал данные дня
	if existing, err := o.store.Analysis(ctx, rec.UserID, day); err == nil && existing != nil {
		return generated{id: existing.ID, createdAt: existing.CreatedAt, narrative: existing.Narrative}, nil
	}

	narrative, err := o.narrate(ctx, models.HealthAnalysisRequest{
		UserID:    rec.UserID,
		Date:      rec.Date,
		Metrics:   data.Samples,
		SleepData: data.Sleep,
	})
	if err != nil {
		metrics.NarrativeFailures.Inc()
		o.log.Warnf("Narrative for %s on %s failed, keeping numeric result: %v", rec.UserID, rec.Date, err)
		return generated{}, nil
	}

	now := o.clock()
	out := generated{
		id:        fmt.Sprintf("%s_%d", rec.UserID, now.UnixMilli()),
		createdAt: now.UTC(),
		narrative: narrative,
	}
	applyGenerated(&rec, out)
	rec.Tips = append([]string(nil), rec.Tips...)
	rec.Alerts = append([]string{}, rec.Alerts...)
	if err := o.store.SaveAnalysis(ctx, rec); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		return out, &StoreError{Op: "save", Err: err}
	}
	return out, nil
}

func (o *Orchestrator) narrate(ctx context.Context, req models.HealthAnalysisRequest) (models.Narrative, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	n, err := o.narrator.Narrate(ctx, req)
	if err != nil {
		return models.Narrative{}, err
	}
	if n.Alerts == nil {
		n.Alerts = []string{}
	}
	return n, nil
}

// applyGenerated переносит общую часть в запись вызывающего; пустая общая часть запись не меняет
func applyGenerated(rec *models.DailyRecord, g generated) {
	if g.id == "" {
		return
	}
	rec.ID = g.id
	rec.CreatedAt = g.createdAt
	rec.Narrative = g.narrative
	rec.Narrative.Alerts = append([]string{}, g.narrative.Alerts...)
}

// notifyAlerts отправляет по одному уведомлению на алерт; ошибки не прерывают анализ
func (o *Orchestrator) notifyAlerts(ctx context.Context, userID string, alerts []string) {
	if o.notifier == nil {
		return
	}
	for _, alert := range alerts {
		err := o.notifier.Notify(ctx, userID, alert)
		metrics.ObserveNotification(err)
		if err != nil {
			o.log.Warnf("Failed to notify %s: %v", userID, err)
		}
	}
}
