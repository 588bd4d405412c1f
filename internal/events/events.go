package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Type names a job transition.
type Type string

const (
	TypeSubmitted Type = "job.submitted"
	TypeProgress  Type = "job.progress"
	TypeCompleted Type = "job.completed"
	TypeFailed    Type = "job.failed"
	TypeRetried   Type = "job.retried"
)

// JobEvent is the payload published for each transition.
type JobEvent struct {
	Type       Type             `json:"type"`
	JobID      string           `json:"job_id"`
	UserID     string           `json:"user_id"`
	Kind       domain.JobKind   `json:"kind"`
	Status     domain.JobStatus `json:"status"`
	Progress   int              `json:"progress"`
	Result     string           `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	RequestID  string           `json:"request_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// FromJob builds an event snapshot of job.
func FromJob(t Type, job *domain.Job, at time.Time) JobEvent {
	return JobEvent{
		Type:       t,
		JobID:      job.ID,
		UserID:     job.UserID,
		Kind:       job.Kind,
		Status:     job.Status,
		Progress:   job.Progress,
		Result:     job.Result(),
		Error:      job.Error(),
		RequestID:  job.RequestID,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers job events to realtime consumers.
type Publisher interface {
	Publish(ctx context.Context, event JobEvent) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, JobEvent) error { return nil }

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON-encoded events on a pub/sub channel.
type RedisPublisher struct {
	client  redisClient
	channel string
	logger  zerolog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger zerolog.Logger) *RedisPublisher {
	return newRedisPublisher(client, channel, logger)
}

func newRedisPublisher(client redisClient, channel string, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	p.logger.Debug().
		Str("event", string(event.Type)).
		Str("job_id", event.JobID).
		Int64("receivers", receivers).
		Msg("event published")
	return nil
}

// Subscribe streams decoded events from channel until ctx is cancelled.
// Malformed payloads are skipped.
func Subscribe(ctx context.Context, client *redis.Client, channel string, fn func(JobEvent)) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe %s: %w", channel, err)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			fn(event)
		}
	}
}
