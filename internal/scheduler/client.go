package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"freelancer_ops_backend/platform/config"

	"github.com/hibiken/asynq"
)

// Client enqueues scheduler tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisConnOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueJourneyExpiry schedules one expiry sweep. uniqueFor keeps
// overlapping sweeps from piling up when the worker lags behind.
func (c *Client) EnqueueJourneyExpiry(ctx context.Context, expireAfter, uniqueFor time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewJourneyExpireTask(expireAfter)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(uniqueFor), asynq.MaxRetry(3))
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

// redisConnOpt parses a redis:// or rediss:// URL. tlsInsecure skips
// certificate checks for managed Redis with self-signed certificates.
func redisConnOpt(redisURL string, tlsInsecure bool) (asynq.RedisConnOpt, error) {
	parsed, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt, ok := parsed.(asynq.RedisClientOpt)
	if !ok || !tlsInsecure {
		return parsed, nil
	}

	if opt.TLSConfig != nil {
		opt.TLSConfig = opt.TLSConfig.Clone()
	} else {
		opt.TLSConfig = &tls.Config{}
	}
	opt.TLSConfig.InsecureSkipVerify = true //nolint:gosec // opt-in via REDIS_TLS_INSECURE
	return opt, nil
}
