package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/queue"
)

const popTimeout = 5 * time.Second

type JobQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.ScanJob, error)
	Length(ctx context.Context) (int64, error)
}

type QueueGauge interface {
	SetQueueSize(queue string, size int64)
}

// WorkerPool drains the scan queue with a fixed number of workers.
type WorkerPool struct {
	service *Service
	jobs    JobQueue
	gauge   QueueGauge
	count   int
	logger  *zap.Logger
}

func NewWorkerPool(service *Service, jobs JobQueue, gauge QueueGauge, count int, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		service: service,
		jobs:    jobs,
		gauge:   gauge,
		count:   count,
		logger:  logger,
	}
}

// Run blocks until the context is cancelled and all workers drained.
func (p *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reportQueueSize(ctx)
	}()

	wg.Wait()
}

func (p *WorkerPool) work(ctx context.Context, id int) {
	log := p.logger.With(zap.Int("worker", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		default:
		}

		job, err := p.jobs.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Error("queue pop failed", zap.Error(err))
			continue
		}

		scanCtx, cancel := context.WithTimeout(ctx, p.service.cfg.ScanTimeout)
		_, _, err = p.service.Process(scanCtx, job.Submission)
		cancel()
		if err != nil {
			log.Error("scan failed",
				zap.String("job_id", job.ID),
				zap.String("domain", job.Submission.Domain),
				zap.Error(err))
		}
	}
}

func (p *WorkerPool) reportQueueSize(ctx context.Context) {
	if p.gauge == nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if size, err := p.jobs.Length(ctx); err == nil {
				p.gauge.SetQueueSize("scan_jobs", size)
			}
		}
	}
}
