package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func slot(id, resource string, start time.Time, minutes int) model.TimeSlot {
	return model.TimeSlot{ID: id, ResourceID: resource, Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestDetectBufferedOverlap(t *testing.T) {
	existing := []model.TimeSlot{slot("a", "dr-p", at(10, 0), 30)}
	buffer := 15 * time.Minute

	tests := []struct {
		name     string
		start    time.Time
		conflict bool
	}{
		{name: "direct overlap", start: at(10, 20), conflict: true},
		{name: "inside buffer after", start: at(10, 40), conflict: true},
		{name: "exactly buffer after", start: at(10, 45), conflict: false},
		{name: "clear of buffer", start: at(10, 50), conflict: false},
		{name: "inside buffer before", start: at(9, 20), conflict: true},
		{name: "exactly buffer before", start: at(9, 15), conflict: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(slot("b", "dr-p", tt.start, 30), existing, buffer)
			if tt.conflict {
				assert.Equal(t, existing, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestDetectBuffersProposedSlotOnly(t *testing.T) {
	// The neighbours sit 5 minutes apart, tighter than the buffer; they were
	// booked before it and stay valid. A new booking needs one buffer of gap,
	// not two.
	existing := []model.TimeSlot{
		slot("a", "dr-p", at(10, 0), 30),
		slot("c", "dr-p", at(10, 35), 25),
	}
	assert.Empty(t, Detect(slot("new", "dr-p", at(11, 15), 30), existing, 15*time.Minute))
	assert.Equal(t, []model.TimeSlot{existing[1]}, Detect(slot("new", "dr-p", at(11, 10), 30), existing, 15*time.Minute))
}

func TestDetectExcludesSelf(t *testing.T) {
	existing := []model.TimeSlot{slot("a", "dr-p", at(10, 0), 30)}
	assert.Empty(t, Detect(slot("a", "dr-p", at(10, 0), 30), existing, 15*time.Minute))
}

func TestDetectIgnoresOtherResources(t *testing.T) {
	existing := []model.TimeSlot{slot("a", "dr-q", at(10, 0), 30)}
	assert.Empty(t, Detect(slot("b", "dr-p", at(10, 0), 30), existing, 0))
}

func TestDetectZeroBufferAllowsBackToBack(t *testing.T) {
	existing := []model.TimeSlot{slot("a", "dr-p", at(10, 0), 30)}
	assert.Empty(t, Detect(slot("b", "dr-p", at(10, 30), 30), existing, 0))
	assert.Len(t, Detect(slot("b", "dr-p", at(10, 29), 30), existing, 0), 1)
	assert.Empty(t, Detect(slot("b", "dr-p", at(10, 30), 30), existing, -5*time.Minute))
}
