package notify

import (
	"context"
	"time"
)

const (
	EventAppointmentUpdated   = "appointment_updated"
	EventAppointmentCancelled = "appointment_cancelled"
	EventSlotFreed            = "slot_freed"

	CollaboratorSync     = "sync"
	CollaboratorWaitlist = "waitlist"
)

// AppointmentUpdated lists the fields a write changed, keyed by column name.
type AppointmentUpdated struct {
	AppointmentID string         `json:"appointment_id"`
	ChangedFields map[string]any `json:"changed_fields"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

type AppointmentCancelled struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	ServiceID     string    `json:"service_id"`
	ProviderID    *string   `json:"provider_id"`
	StartTime     time.Time `json:"start_time"`
	Status        string    `json:"status"`
	PatientName   string    `json:"patient_name"`
	PatientPhone  string    `json:"patient_phone"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// SlotFreed tells the waitlist a provider's time became available.
type SlotFreed struct {
	AppointmentID string    `json:"appointment_id"`
	ServiceType   string    `json:"service_type"`
	ProviderID    *string   `json:"provider_id"`
	StartTime     time.Time `json:"start_time"`
}

// Sync is the external automation platform mirroring appointment changes.
type Sync interface {
	AppointmentUpdated(ctx context.Context, ev AppointmentUpdated) error
	AppointmentCancelled(ctx context.Context, ev AppointmentCancelled) error
}

// Waitlist is told when a slot opens up.
type Waitlist interface {
	SlotFreed(ctx context.Context, ev SlotFreed) error
}
