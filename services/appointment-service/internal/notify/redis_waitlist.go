package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultWaitlistStream = "waitlist:slot_freed"

// RedisWaitlist appends freed slots to a capped redis stream read by the
// waitlist matcher.
type RedisWaitlist struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisWaitlist(rdb redis.Cmdable, stream string) *RedisWaitlist {
	if stream == "" {
		stream = DefaultWaitlistStream
	}
	return &RedisWaitlist{rdb: rdb, stream: stream, maxLen: 10000}
}

func (w *RedisWaitlist) SlotFreed(ctx context.Context, ev SlotFreed) error {
	provider := ""
	if ev.ProviderID != nil {
		provider = *ev.ProviderID
	}
	return w.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: w.stream,
		MaxLen: w.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":       uuid.NewString(),
			"appointment_id": ev.AppointmentID,
			"service_type":   ev.ServiceType,
			"provider_id":    provider,
			"start_time":     ev.StartTime.UTC().Format(time.RFC3339),
		},
	}).Err()
}
