package lifecycle

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

var (
	ErrTerminalState     = errors.New("appointment is in a terminal status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownKind       = errors.New("unknown confirmation kind")
)

// TerminalStateError is returned when an operation targets an appointment that
// can no longer change. errors.Is(err, ErrTerminalState) holds.
type TerminalStateError struct {
	Op     string
	Status model.Status
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("cannot %s appointment in terminal status %q", e.Op, e.Status)
}

func (e *TerminalStateError) Unwrap() error { return ErrTerminalState }

// InvalidTransitionError names the status the appointment must reach first.
// errors.Is(err, ErrInvalidTransition) holds.
type InvalidTransitionError struct {
	From     model.Status
	To       model.Status
	Requires model.Status
}

func (e *InvalidTransitionError) Error() string {
	if e.Requires != "" {
		return fmt.Sprintf("cannot move appointment from %q to %q: must be %q first", e.From, e.To, e.Requires)
	}
	return fmt.Sprintf("cannot move appointment from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
