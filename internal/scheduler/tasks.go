package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskJourneyExpire = "journey.expire"

// JourneyExpirePayload carries the idle window so a sweep enqueued before a
// config change still uses the value it was scheduled with.
type JourneyExpirePayload struct {
	ExpireAfterSeconds int64 `json:"expireAfterSeconds"`
}

func (p JourneyExpirePayload) ExpireAfter() time.Duration {
	return time.Duration(p.ExpireAfterSeconds) * time.Second
}

func NewJourneyExpireTask(expireAfter time.Duration) (*asynq.Task, error) {
	if expireAfter <= 0 {
		return nil, fmt.Errorf("expire after must be positive, got %s", expireAfter)
	}
	data, err := json.Marshal(JourneyExpirePayload{ExpireAfterSeconds: int64(expireAfter / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJourneyExpire, data), nil
}

func ParseJourneyExpirePayload(task *asynq.Task) (JourneyExpirePayload, error) {
	var payload JourneyExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return JourneyExpirePayload{}, err
	}
	if payload.ExpireAfterSeconds <= 0 {
		return JourneyExpirePayload{}, fmt.Errorf("invalid expireAfterSeconds %d", payload.ExpireAfterSeconds)
	}
	return payload, nil
}
