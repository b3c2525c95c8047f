package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/appointments"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
	"github.com/segmentio/kafka-go"
)

const DefaultOutcomeTopic = "appointment.outcome.v1"

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, id string, outcome model.Status) (appointments.Result, error)
}

type outcomeEvent struct {
	AppointmentID string `json:"appointment_id"`
	Outcome       string `json:"outcome"`
}

// OutcomeHandler applies attendance outcomes. Events that can never succeed
// (bad payload, unknown appointment, rejected transition) are logged and
// dropped; anything else is returned so the event is retried.
func OutcomeHandler(svc OutcomeRecorder, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var ev outcomeEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn("malformed outcome event", "err", err, "offset", msg.Offset)
			return nil
		}
		id := strings.TrimSpace(ev.AppointmentID)
		outcome := model.Status(strings.ToLower(strings.TrimSpace(ev.Outcome)))
		if id == "" || (outcome != model.StatusCompleted && outcome != model.StatusNoShow) {
			logger.Warn("invalid outcome event", "appointment_id", id, "outcome", ev.Outcome)
			return nil
		}

		res, err := svc.RecordOutcome(ctx, id, outcome)
		switch {
		case err == nil:
			logger.Info("outcome recorded", "appointment_id", id, "outcome", outcome, "changed", res.Changed)
			return nil
		case errors.Is(err, appointments.ErrNotFound),
			errors.Is(err, lifecycle.ErrTerminalState),
			errors.Is(err, lifecycle.ErrInvalidTransition):
			logger.Warn("outcome rejected", "appointment_id", id, "outcome", outcome, "err", err)
			return nil
		}
		return err
	}
}
