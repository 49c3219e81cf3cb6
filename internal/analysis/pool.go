package analysis

import (
	"context"
	"sync"
	"time"

	"healthsignal-service/internal/models"
)

// Runner выполняет анализ одного дня
type Runner interface {
	Run(ctx context.Context, userID string, day time.Time) (models.DailyRecord, error)
}

// Job задача пересчета дня пользователя
type Job struct {
	UserID string
	Day    time.Time
}

// JobResult результат пересчета
type JobResult struct {
	Job    Job
	Record models.DailyRecord
	Err    error
}

// Pool пересчитывает дни пользователей в фоне после загрузки данных
type Pool struct {
	runner  Runner
	jobs    chan Job
	results chan JobResult
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool создает пул с очередью на bufferSize задач
func NewPool(runner Runner, bufferSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		runner:  runner,
		jobs:    make(chan Job, bufferSize),
		results: make(chan JobResult, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start запускает горутины для обработки задач
func (p *Pool) Start(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker горутина для обработки задач
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			rec, err := p.runner.Run(p.ctx, job.UserID, job.Day)
			select {
			case p.results <- JobResult{Job: job, Record: rec, Err: err}:
			default:
				// Канал результатов переполнен, пропускаем
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Submit ставит задачу в очередь, false если очередь заполнена
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Results возвращает канал результатов
func (p *Pool) Results() <-chan JobResult {
	return p.results
}

// QueueLen количество задач в очереди
func (p *Pool) QueueLen() int {
	return len(p.jobs)
}

// Stop останавливает пул и ждет завершения воркеров
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
