package notify

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/clinicdesk/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const (
	TopicAppointmentUpdated   = "appointment.updated.v1"
	TopicAppointmentCancelled = "appointment.cancelled.v1"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSync publishes appointment changes for the automation platform.
type KafkaSync struct {
	writer MessageWriter
}

func NewKafkaSync(writer MessageWriter) *KafkaSync {
	return &KafkaSync{writer: writer}
}

func (s *KafkaSync) AppointmentUpdated(ctx context.Context, ev AppointmentUpdated) error {
	return s.publish(ctx, TopicAppointmentUpdated, ev.AppointmentID, ev)
}

func (s *KafkaSync) AppointmentCancelled(ctx context.Context, ev AppointmentCancelled) error {
	return s.publish(ctx, TopicAppointmentCancelled, ev.AppointmentID, ev)
}

func (s *KafkaSync) publish(ctx context.Context, topic, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: raw,
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, kafkax.EventHeaders(topic))
	return s.writer.WriteMessages(ctx, msg)
}
