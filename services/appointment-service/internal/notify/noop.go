package notify

import "context"

type NoopSync struct{}

func (NoopSync) AppointmentUpdated(context.Context, AppointmentUpdated) error     { return nil }
func (NoopSync) AppointmentCancelled(context.Context, AppointmentCancelled) error { return nil }

type NoopWaitlist struct{}

func (NoopWaitlist) SlotFreed(context.Context, SlotFreed) error { return nil }
