// Package lifecycle validates appointment status changes. It has no I/O and
// knows nothing about scheduling or notifications.
//
//	scheduled -> confirmed -> present -> completed
//	    |            |          |
//	    +------------+----------+--> cancelled
//	scheduled, confirmed -> no_show
//
// cancelled, no_show and completed are terminal.
package lifecycle

import (
	"strings"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

// Kind is the confirmation step a caller asks for.
type Kind string

const (
	KindConfirmed Kind = "confirmed"
	KindPresent   Kind = "present"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindConfirmed:
		return KindConfirmed, nil
	case KindPresent:
		return KindPresent, nil
	}
	return "", ErrUnknownKind
}

// Transition is the outcome of a validated request. Changed is false when the
// appointment already satisfies it and nothing should be written.
type Transition struct {
	From    model.Status
	To      model.Status
	Changed bool
}

func unchanged(s model.Status) Transition {
	return Transition{From: s, To: s}
}

func moved(from, to model.Status) Transition {
	return Transition{From: from, To: to, Changed: true}
}

// Confirm validates a confirmation step. Asking for a step the appointment has
// already reached or passed is a no-op.
func Confirm(current model.Status, kind Kind) (Transition, error) {
	if current.Terminal() {
		return Transition{}, &TerminalStateError{Op: "confirm", Status: current}
	}
	switch kind {
	case KindConfirmed:
		switch current {
		case model.StatusScheduled:
			return moved(current, model.StatusConfirmed), nil
		case model.StatusConfirmed, model.StatusPresent:
			return unchanged(current), nil
		}
	case KindPresent:
		switch current {
		case model.StatusConfirmed:
			return moved(current, model.StatusPresent), nil
		case model.StatusPresent:
			return unchanged(current), nil
		case model.StatusScheduled:
			return Transition{}, &InvalidTransitionError{From: current, To: model.StatusPresent, Requires: model.StatusConfirmed}
		}
	default:
		return Transition{}, ErrUnknownKind
	}
	return Transition{}, &InvalidTransitionError{From: current, To: model.Status(kind)}
}

// Cancel validates a cancellation. An already cancelled appointment is a no-op
// so retries are safe; other terminal statuses are rejected.
func Cancel(current model.Status) (Transition, error) {
	switch {
	case current == model.StatusCancelled:
		return unchanged(current), nil
	case current.Terminal():
		return Transition{}, &TerminalStateError{Op: "cancel", Status: current}
	case !current.Valid():
		return Transition{}, &InvalidTransitionError{From: current, To: model.StatusCancelled}
	}
	return moved(current, model.StatusCancelled), nil
}

// CanReschedule reports whether the appointment's time or provider may change.
func CanReschedule(current model.Status) error {
	if current.Terminal() {
		return &TerminalStateError{Op: "reschedule", Status: current}
	}
	if !current.Valid() {
		return &InvalidTransitionError{From: current, To: current}
	}
	return nil
}

// RecordOutcome validates an attendance outcome reported by the front desk
// process: completed after the visit, no_show when the patient never arrived.
func RecordOutcome(current model.Status, outcome model.Status) (Transition, error) {
	if outcome != model.StatusCompleted && outcome != model.StatusNoShow {
		return Transition{}, &InvalidTransitionError{From: current, To: outcome}
	}
	if current == outcome {
		return unchanged(current), nil
	}
	if current.Terminal() {
		return Transition{}, &TerminalStateError{Op: "record outcome for", Status: current}
	}
	switch {
	case outcome == model.StatusCompleted && (current == model.StatusConfirmed || current == model.StatusPresent):
		return moved(current, outcome), nil
	case outcome == model.StatusCompleted && current == model.StatusScheduled:
		return Transition{}, &InvalidTransitionError{From: current, To: outcome, Requires: model.StatusConfirmed}
	case outcome == model.StatusNoShow && (current == model.StatusScheduled || current == model.StatusConfirmed):
		return moved(current, outcome), nil
	}
	return Transition{}, &InvalidTransitionError{From: current, To: outcome}
}
