// Package conflict decides whether a proposed booking collides with existing
// ones on the same resource.
//
// The buffer is applied to the proposed slot only. Existing slots keep their
// natural bounds, so a buffer change never invalidates bookings made before it.
package conflict

import (
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

// Detect returns every candidate that overlaps proposed once proposed is widened
// by buffer on both sides. Candidates sharing the proposed ID, or belonging to
// another resource, are ignored. A nil result means no conflict.
func Detect(proposed model.TimeSlot, candidates []model.TimeSlot, buffer time.Duration) []model.TimeSlot {
	if buffer < 0 {
		buffer = 0
	}
	start := proposed.Start.Add(-buffer)
	end := proposed.End.Add(buffer)

	var conflicts []model.TimeSlot
	for _, c := range candidates {
		if proposed.ID != "" && c.ID == proposed.ID {
			continue
		}
		if c.ResourceID != proposed.ResourceID {
			continue
		}
		if overlaps(start, end, c.Start, c.End) {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// Half-open intervals: [aStart,aEnd) overlaps [bStart,bEnd) iff aStart < bEnd && bStart < aEnd.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
