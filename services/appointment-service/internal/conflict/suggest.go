package conflict

import (
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

// Suggest returns slot start times within [windowStart, windowEnd) where a booking
// of length duration would pass Detect against busy with the given buffer.
// Starts before now are skipped. busy is expected to hold one resource's slots.
func Suggest(windowStart, windowEnd time.Time, duration, step, buffer time.Duration, busy []model.TimeSlot, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) || windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var starts []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		probe := model.TimeSlot{Start: t, End: t.Add(duration)}
		if len(busy) > 0 {
			probe.ResourceID = busy[0].ResourceID
		}
		if len(Detect(probe, busy, buffer)) == 0 {
			starts = append(starts, t)
		}
	}
	return starts
}
