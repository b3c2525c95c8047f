package model

import (
	"errors"
	"slices"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusPresent   Status = "present"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusPresent, StatusCancelled, StatusNoShow, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusNoShow || s == StatusCompleted
}

// releasedStatuses free their slot for other bookings.
var releasedStatuses = []Status{StatusCancelled, StatusNoShow}

// BlocksSchedule reports whether an appointment in status s still occupies its slot.
func (s Status) BlocksSchedule() bool {
	return !slices.Contains(releasedStatuses, s)
}

// ReleasedStatuses lists, as stored, the statuses for which BlocksSchedule is false.
func ReleasedStatuses() []string {
	out := make([]string, len(releasedStatuses))
	for i, s := range releasedStatuses {
		out[i] = string(s)
	}
	return out
}

type PatientSummary struct {
	ID    string
	Name  string
	Phone string
}

type Appointment struct {
	ID              string
	PatientID       string
	ServiceID       string
	Type            string
	ProviderID      *string
	StartTime       time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	Patient         PatientSummary
	UpdatedAt       time.Time
}

func (a Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(a.Duration())
}

// Slot projects the appointment onto its provider's timeline. ok is false when
// no provider is assigned.
func (a Appointment) Slot() (TimeSlot, bool) {
	if a.ProviderID == nil {
		return TimeSlot{}, false
	}
	return TimeSlot{
		ID:         a.ID,
		Start:      a.StartTime,
		End:        a.EndTime(),
		ResourceID: *a.ProviderID,
	}, true
}

// TimeSlot is a transient interval on one resource's timeline.
type TimeSlot struct {
	ID         string
	Start      time.Time
	End        time.Time
	ResourceID string
}

// ErrNotFound is returned by every lookup of an appointment id that does not exist.
var ErrNotFound = errors.New("appointment not found")
