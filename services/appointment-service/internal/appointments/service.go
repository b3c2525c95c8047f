// Package appointments coordinates every write to an appointment. Each
// operation loads the row under lock, validates it, writes and commits in one
// transaction, and only then hands notifications to the dispatcher.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/conflict"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/notify"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/policy"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const MinCancelReasonLength = 3

type Repository interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	LockProviderDay(ctx context.Context, tx pgx.Tx, providerID string, day time.Time) error
	ListSlots(ctx context.Context, q storage.Querier, providerID string, from, to time.Time, excludeID string) ([]model.TimeSlot, error)
	UpdateSchedule(ctx context.Context, tx pgx.Tx, id string, start time.Time, providerID *string) (time.Time, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (time.Time, error)
	Cancel(ctx context.Context, tx pgx.Tx, id, notes string) (time.Time, error)
}

// Notifier receives committed changes. Implementations must not block.
type Notifier interface {
	AppointmentUpdated(ctx context.Context, ev notify.AppointmentUpdated)
	AppointmentCancelled(ctx context.Context, ev notify.AppointmentCancelled, freed notify.SlotFreed)
}

type Config struct {
	TxTimeout time.Duration
	// Location decides which calendar day an appointment belongs to.
	Location *time.Location
	// Working hours offered by Suggest, as offsets from local midnight.
	DayStart time.Duration
	DayEnd   time.Duration
	SlotStep time.Duration
	Now      func() time.Time
}

type Result struct {
	Appointment      model.Appointment
	Changed          bool
	AlreadyCancelled bool
}

type RescheduleRequest struct {
	NewStart      *time.Time
	NewProviderID *string
}

type Service struct {
	repo     Repository
	buffers  policy.Provider
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.AppointmentMetrics
	tracer   trace.Tracer
	cfg      Config
}

func NewService(repo Repository, buffers policy.Provider, notifier Notifier, logger *slog.Logger, m *metrics.AppointmentMetrics, cfg Config) *Service {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DayStart <= 0 && cfg.DayEnd <= 0 {
		cfg.DayStart, cfg.DayEnd = 8*time.Hour, 18*time.Hour
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if buffers == nil {
		buffers = policy.NewStaticProvider(15*time.Minute, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		buffers:  buffers,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("clinicdesk.appointments"),
		cfg:      cfg,
	}
}

// Reschedule moves an appointment to a new start time, a new provider or
// both. The new placement is checked against the provider's other bookings
// for that day inside the same transaction that writes it.
func (s *Service) Reschedule(ctx context.Context, id string, req RescheduleRequest) (res Result, err error) {
	ctx, finish := s.start(ctx, "reschedule", id)
	defer func() { finish(res, err) }()

	if req.NewStart != nil && req.NewStart.IsZero() {
		return Result{}, s.fail(ctx, "reschedule", id, invalidInput("start time must be set"))
	}
	if req.NewProviderID != nil && strings.TrimSpace(*req.NewProviderID) == "" {
		return Result{}, s.fail(ctx, "reschedule", id, invalidInput("provider id must not be empty"))
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Result{}, s.fail(ctx, "reschedule", id, err)
	}
	defer rollback(ctx, tx)

	appt, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Result{}, s.fail(ctx, "reschedule", id, err)
	}
	if err := lifecycle.CanReschedule(appt.Status); err != nil {
		return Result{}, s.fail(ctx, "reschedule", id, err)
	}

	start := appt.StartTime
	if req.NewStart != nil {
		start = *req.NewStart
	}
	provider := appt.ProviderID
	if req.NewProviderID != nil {
		p := strings.TrimSpace(*req.NewProviderID)
		provider = &p
	}

	changed := map[string]any{}
	if !start.Equal(appt.StartTime) {
		changed["start_time"] = start.UTC().Format(time.RFC3339)
	}
	if !sameProvider(provider, appt.ProviderID) {
		changed["provider_id"] = *provider
	}
	if len(changed) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, s.fail(ctx, "reschedule", id, err)
		}
		return Result{Appointment: appt}, nil
	}

	placed := appt
	placed.StartTime, placed.ProviderID = start, provider
	if proposed, ok := placed.Slot(); ok {
		if err := s.checkConflicts(ctx, tx, proposed); err != nil {
			return Result{}, s.fail(ctx, "reschedule", id, err)
		}
	}

	updatedAt, err := s.repo.UpdateSchedule(ctx, tx, appt.ID, start, provider)
	if err != nil {
		return Result{}, s.fail(ctx, "reschedule", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, s.fail(ctx, "reschedule", id, err)
	}

	appt.StartTime = start
	appt.ProviderID = provider
	appt.UpdatedAt = updatedAt
	s.logger.Info("appointment rescheduled", "appointment_id", appt.ID, "start_time", start.UTC().Format(time.RFC3339))

	if s.notifier != nil {
		s.notifier.AppointmentUpdated(ctx, notify.AppointmentUpdated{
			AppointmentID: appt.ID,
			ChangedFields: changed,
			OccurredAt:    s.cfg.Now().UTC(),
		})
	}
	return Result{Appointment: appt, Changed: true}, nil
}

func (s *Service) checkConflicts(ctx context.Context, tx pgx.Tx, proposed model.TimeSlot) error {
	from, to := s.dayBounds(proposed.Start)
	if err := s.repo.LockProviderDay(ctx, tx, proposed.ResourceID, from); err != nil {
		return err
	}
	buffer, err := s.buffers.Buffer(ctx, proposed.ResourceID)
	if err != nil {
		return err
	}
	candidates, err := s.repo.ListSlots(ctx, tx, proposed.ResourceID, from, to, proposed.ID)
	if err != nil {
		return err
	}
	if conflicts := conflict.Detect(proposed, candidates, buffer); len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// Cancel marks the appointment cancelled and appends the reason to its notes.
// Cancelling twice returns the stored record with AlreadyCancelled set.
func (s *Service) Cancel(ctx context.Context, id, reason string) (res Result, err error) {
	ctx, finish := s.start(ctx, "cancel", id)
	defer func() { finish(res, err) }()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Result{}, s.fail(ctx, "cancel", id, err)
	}
	defer rollback(ctx, tx)

	appt, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Result{}, s.fail(ctx, "cancel", id, err)
	}
	tr, err := lifecycle.Cancel(appt.Status)
	if err != nil {
		return Result{}, s.fail(ctx, "cancel", id, err)
	}
	if !tr.Changed {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, s.fail(ctx, "cancel", id, err)
		}
		return Result{Appointment: appt, AlreadyCancelled: true}, nil
	}
	// A repeated cancel is answered above whatever its reason.
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinCancelReasonLength {
		return Result{}, s.fail(ctx, "cancel", id, invalidInput(fmt.Sprintf("reason must be at least %d characters", MinCancelReasonLength)))
	}

	notes := AppendCancellationNote(appt.Notes, reason, s.cfg.Now())
	updatedAt, err := s.repo.Cancel(ctx, tx, appt.ID, notes)
	if err != nil {
		return Result{}, s.fail(ctx, "cancel", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, s.fail(ctx, "cancel", id, err)
	}

	appt.Status = tr.To
	appt.Notes = notes
	appt.UpdatedAt = updatedAt
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID)

	if s.notifier != nil {
		s.notifier.AppointmentCancelled(ctx,
			notify.AppointmentCancelled{
				AppointmentID: appt.ID,
				PatientID:     appt.PatientID,
				ServiceID:     appt.ServiceID,
				ProviderID:    appt.ProviderID,
				StartTime:     appt.StartTime,
				Status:        string(appt.Status),
				PatientName:   appt.Patient.Name,
				PatientPhone:  appt.Patient.Phone,
				OccurredAt:    s.cfg.Now().UTC(),
			},
			notify.SlotFreed{
				AppointmentID: appt.ID,
				ServiceType:   appt.Type,
				ProviderID:    appt.ProviderID,
				StartTime:     appt.StartTime,
			},
		)
	}
	return Result{Appointment: appt, Changed: true}, nil
}

// AppendCancellationNote adds a timestamped cancellation line to notes.
func AppendCancellationNote(notes, reason string, at time.Time) string {
	line := fmt.Sprintf("[%s] Cancelled: %s", at.UTC().Format(time.RFC3339), reason)
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

// Confirm advances the appointment to kind. Repeating a step already taken
// returns Changed=false without writing. Confirmations are not broadcast.
func (s *Service) Confirm(ctx context.Context, id string, kind lifecycle.Kind) (res Result, err error) {
	ctx, finish := s.start(ctx, "confirm", id)
	defer func() { finish(res, err) }()

	if kind != lifecycle.KindConfirmed && kind != lifecycle.KindPresent {
		return Result{}, s.fail(ctx, "confirm", id, fmt.Errorf("%w: %w", ErrInvalidInput, lifecycle.ErrUnknownKind))
	}
	return s.transition(ctx, "confirm", id, func(current model.Status) (lifecycle.Transition, error) {
		return lifecycle.Confirm(current, kind)
	}, false)
}

// RecordOutcome applies an attendance outcome (completed or no_show) reported
// by the front desk process.
func (s *Service) RecordOutcome(ctx context.Context, id string, outcome model.Status) (res Result, err error) {
	ctx, finish := s.start(ctx, "record_outcome", id)
	defer func() { finish(res, err) }()

	return s.transition(ctx, "record_outcome", id, func(current model.Status) (lifecycle.Transition, error) {
		return lifecycle.RecordOutcome(current, outcome)
	}, true)
}

func (s *Service) transition(ctx context.Context, op, id string, validate func(model.Status) (lifecycle.Transition, error), broadcast bool) (Result, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Result{}, s.fail(ctx, op, id, err)
	}
	defer rollback(ctx, tx)

	appt, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Result{}, s.fail(ctx, op, id, err)
	}
	tr, err := validate(appt.Status)
	if err != nil {
		return Result{}, s.fail(ctx, op, id, err)
	}
	if !tr.Changed {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, s.fail(ctx, op, id, err)
		}
		return Result{Appointment: appt}, nil
	}

	updatedAt, err := s.repo.UpdateStatus(ctx, tx, appt.ID, tr.To)
	if err != nil {
		return Result{}, s.fail(ctx, op, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, s.fail(ctx, op, id, err)
	}

	appt.Status = tr.To
	appt.UpdatedAt = updatedAt
	s.logger.Info("appointment status changed", "appointment_id", appt.ID, "from", tr.From, "to", tr.To)

	if broadcast && s.notifier != nil {
		s.notifier.AppointmentUpdated(ctx, notify.AppointmentUpdated{
			AppointmentID: appt.ID,
			ChangedFields: map[string]any{"status": string(tr.To)},
			OccurredAt:    s.cfg.Now().UTC(),
		})
	}
	return Result{Appointment: appt, Changed: true}, nil
}

// Get returns the current projection without locking.
func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, s.fail(ctx, "get", id, err)
	}
	return appt, nil
}

// Suggest lists slots on day, within working hours, where the appointment
// could be moved without a conflict on its current provider. Each slot keeps
// the appointment's duration and id.
func (s *Service) Suggest(ctx context.Context, id string, day time.Time) ([]model.TimeSlot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "suggest", id, err)
	}
	if appt.ProviderID == nil {
		return nil, s.fail(ctx, "suggest", id, invalidInput("appointment has no provider"))
	}
	if err := lifecycle.CanReschedule(appt.Status); err != nil {
		return nil, s.fail(ctx, "suggest", id, err)
	}

	from, to := s.dayBounds(day)
	buffer, err := s.buffers.Buffer(ctx, *appt.ProviderID)
	if err != nil {
		return nil, s.fail(ctx, "suggest", id, err)
	}
	busy, err := s.repo.ListSlots(ctx, nil, *appt.ProviderID, from, to, appt.ID)
	if err != nil {
		return nil, s.fail(ctx, "suggest", id, err)
	}
	starts := conflict.Suggest(from.Add(s.cfg.DayStart), from.Add(s.cfg.DayEnd), appt.Duration(), s.cfg.SlotStep, buffer, busy, s.cfg.Now())
	slots := make([]model.TimeSlot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, model.TimeSlot{ID: appt.ID, Start: start, End: start.Add(appt.Duration()), ResourceID: *appt.ProviderID})
	}
	return slots, nil
}

// dayBounds returns local midnight to midnight around t in the clinic location.
func (s *Service) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.cfg.Location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	return from, from.AddDate(0, 0, 1)
}

func (s *Service) start(ctx context.Context, op, id string) (context.Context, func(Result, error)) {
	ctx, span := s.tracer.Start(ctx, "appointments."+op, trace.WithAttributes(attribute.String("appointment.id", id)))
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	started := time.Now()

	return ctx, func(res Result, err error) {
		cancel()
		label := outcome(res, err)
		span.SetAttributes(attribute.String("appointment.outcome", label))
		if label == "error" || label == "timeout" {
			span.RecordError(err)
			span.SetStatus(codes.Error, label)
			s.logger.Error("appointment operation failed", "op", op, "appointment_id", id, "err", err)
		}
		span.End()
		s.metrics.ObserveOperation(op, label, time.Since(started))
	}
}

func (s *Service) fail(ctx context.Context, op, id string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("appointments: %s %s: %w: %v", op, id, ErrTimeout, err)
	}
	return fmt.Errorf("appointments: %s %s: %w", op, id, err)
}

func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(context.WithoutCancel(ctx))
}

func sameProvider(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
