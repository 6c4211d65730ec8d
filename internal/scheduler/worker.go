package scheduler

import (
	"context"
	"fmt"
	"time"

	"freelancer_ops_backend/platform/config"
	"freelancer_ops_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// JourneyExpirer appends EXPIRED to jobs idle since before cutoff.
type JourneyExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	journey JourneyExpirer
	log     *logger.Logger
	now     func() time.Time
}

func NewWorker(cfg config.SchedulerConfig, journey JourneyExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisConnOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(journey, log)
	w.server = server
	return w, nil
}

func newWorker(journey JourneyExpirer, log *logger.Logger) *Worker {
	w := &Worker{
		mux:     asynq.NewServeMux(),
		journey: journey,
		log:     log,
		now:     time.Now,
	}
	w.mux.HandleFunc(TaskJourneyExpire, w.handleJourneyExpire)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleJourneyExpire(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJourneyExpirePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	cutoff := w.now().Add(-payload.ExpireAfter())
	expired, err := w.journey.ExpireStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.log.Info("journey expiry sweep finished", "expired", expired, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return nil
}
