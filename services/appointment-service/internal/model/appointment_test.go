package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReleasedStatusesMatchBlocksSchedule(t *testing.T) {
	assert.Equal(t, []string{"cancelled", "no_show"}, ReleasedStatuses())
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusPresent, StatusCancelled, StatusNoShow, StatusCompleted} {
		released := false
		for _, r := range ReleasedStatuses() {
			released = released || r == string(s)
		}
		assert.Equal(t, !released, s.BlocksSchedule(), s)
	}
}

func TestSlotNeedsProvider(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	appt := Appointment{ID: "a", StartTime: start, DurationMinutes: 30}

	_, ok := appt.Slot()
	assert.False(t, ok)

	provider := "dr-lee"
	appt.ProviderID = &provider
	slot, ok := appt.Slot()
	assert.True(t, ok)
	assert.Equal(t, TimeSlot{ID: "a", Start: start, End: start.Add(30 * time.Minute), ResourceID: "dr-lee"}, slot)
}
