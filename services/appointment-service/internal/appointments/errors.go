package appointments

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

var (
	ErrNotFound           = model.ErrNotFound
	ErrSchedulingConflict = errors.New("scheduling conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("operation timed out")
)

// ConflictError lists the appointments a reschedule would collide with.
// errors.Is(err, ErrSchedulingConflict) holds.
type ConflictError struct {
	Conflicts []model.TimeSlot
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		c := e.Conflicts[0]
		return fmt.Sprintf("scheduling conflict with appointment %s (%s-%s)", c.ID, c.Start.UTC().Format(time.RFC3339), c.End.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("scheduling conflict with %d appointments", len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrSchedulingConflict }

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// outcome labels an operation result for metrics and spans.
func outcome(res Result, err error) string {
	switch {
	case err == nil && res.Changed:
		return "ok"
	case err == nil:
		return "noop"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSchedulingConflict):
		return "conflict"
	case errors.Is(err, lifecycle.ErrTerminalState):
		return "terminal"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, lifecycle.ErrUnknownKind):
		return "invalid_input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	}
	return "error"
}
