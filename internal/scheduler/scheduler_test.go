package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"freelancer_ops_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type fakeExpirer struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time) (int, error) {
	f.calls++
	f.cutoff = cutoff
	return 2, f.err
}

type fakeEnqueuer struct {
	mu          sync.Mutex
	calls       int
	expireAfter time.Duration
	uniqueFor   time.Duration
	err         error
	onCall      func()
}

func (f *fakeEnqueuer) EnqueueJourneyExpiry(_ context.Context, expireAfter, uniqueFor time.Duration) error {
	f.mu.Lock()
	f.calls++
	f.expireAfter = expireAfter
	f.uniqueFor = uniqueFor
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	return f.err
}

func TestHandleJourneyExpireUsesPayloadWindow(t *testing.T) {
	expirer := &fakeExpirer{}
	w := newWorker(expirer, logger.Nop())
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	task, err := NewJourneyExpireTask(48 * time.Hour)
	if err != nil {
		t.Fatalf("NewJourneyExpireTask returned error: %v", err)
	}
	if err := w.handleJourneyExpire(context.Background(), task); err != nil {
		t.Fatalf("handleJourneyExpire returned error: %v", err)
	}

	want := now.Add(-48 * time.Hour)
	if !expirer.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoff)
	}
}

func TestHandleJourneyExpireSkipsRetryOnBadPayload(t *testing.T) {
	expirer := &fakeExpirer{}
	w := newWorker(expirer, logger.Nop())

	err := w.handleJourneyExpire(context.Background(), asynq.NewTask(TaskJourneyExpire, []byte(`{"expireAfterSeconds":0}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if expirer.calls != 0 {
		t.Fatalf("expected no sweep for invalid payload, got %d", expirer.calls)
	}
}

func TestHandleJourneyExpirePropagatesStoreError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	w := newWorker(expirer, logger.Nop())

	task, _ := NewJourneyExpireTask(time.Hour)
	if err := w.handleJourneyExpire(context.Background(), task); err == nil {
		t.Fatal("expected store error to be returned for retry")
	}
}

func TestNewJourneyExpireTaskRejectsNonPositiveWindow(t *testing.T) {
	if _, err := NewJourneyExpireTask(0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestJourneySweeperEnqueuesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	enqueuer := &fakeEnqueuer{onCall: cancel}

	done := make(chan struct{})
	go func() {
		NewJourneySweeper(enqueuer, logger.Nop(), time.Hour, 720*time.Hour).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	if enqueuer.calls != 1 {
		t.Fatalf("expected one enqueue, got %d", enqueuer.calls)
	}
	if enqueuer.expireAfter != 720*time.Hour || enqueuer.uniqueFor != time.Hour {
		t.Fatalf("unexpected enqueue args: expireAfter=%s uniqueFor=%s", enqueuer.expireAfter, enqueuer.uniqueFor)
	}
}

func TestJourneySweeperToleratesDuplicateTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	enqueuer := &fakeEnqueuer{err: asynq.ErrDuplicateTask, onCall: cancel}

	NewJourneySweeper(enqueuer, logger.Nop(), time.Minute, time.Hour).Run(ctx)

	if enqueuer.calls != 1 {
		t.Fatalf("expected one enqueue, got %d", enqueuer.calls)
	}
}

func TestJourneySweeperDisabledWithoutWindow(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	NewJourneySweeper(enqueuer, logger.Nop(), time.Minute, 0).Run(context.Background())
	if enqueuer.calls != 0 {
		t.Fatalf("expected no enqueue, got %d", enqueuer.calls)
	}
}

func TestRedisConnOptHonoursInsecureTLS(t *testing.T) {
	opt, err := redisConnOpt("rediss://:secret@cache.example.com:6380/2", true)
	if err != nil {
		t.Fatalf("redisConnOpt returned error: %v", err)
	}
	client, ok := opt.(asynq.RedisClientOpt)
	if !ok {
		t.Fatalf("expected RedisClientOpt, got %T", opt)
	}
	if client.Addr != "cache.example.com:6380" || client.Password != "secret" || client.DB != 2 {
		t.Fatalf("unexpected connection options %+v", client)
	}
	if client.TLSConfig == nil || !client.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS to be applied")
	}
}

func TestRedisConnOptRejectsUnknownScheme(t *testing.T) {
	if _, err := redisConnOpt("memcached://localhost:11211", false); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
