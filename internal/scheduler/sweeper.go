package scheduler

import (
	"context"
	"errors"
	"time"

	"freelancer_ops_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultSweepInterval = time.Hour

// ExpiryEnqueuer schedules journey expiry sweeps.
type ExpiryEnqueuer interface {
	EnqueueJourneyExpiry(ctx context.Context, expireAfter, uniqueFor time.Duration) error
}

// JourneySweeper periodically enqueues an expiry sweep.
type JourneySweeper struct {
	enqueuer    ExpiryEnqueuer
	log         *logger.Logger
	interval    time.Duration
	expireAfter time.Duration
}

func NewJourneySweeper(enqueuer ExpiryEnqueuer, log *logger.Logger, interval, expireAfter time.Duration) *JourneySweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &JourneySweeper{
		enqueuer:    enqueuer,
		log:         log,
		interval:    interval,
		expireAfter: expireAfter,
	}
}

func (s *JourneySweeper) Run(ctx context.Context) {
	if s == nil || s.enqueuer == nil || s.expireAfter <= 0 {
		return
	}

	s.enqueue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx)
		}
	}
}

func (s *JourneySweeper) enqueue(ctx context.Context) {
	err := s.enqueuer.EnqueueJourneyExpiry(ctx, s.expireAfter, s.interval)
	switch {
	case err == nil:
		s.log.Info("journey expiry sweep enqueued", "expireAfter", s.expireAfter.String())
	case errors.Is(err, asynq.ErrDuplicateTask):
		s.log.Info("journey expiry sweep already pending")
	default:
		s.log.Warn("failed to enqueue journey expiry sweep", "error", err)
	}
}
