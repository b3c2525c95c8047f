package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is satisfied by *pgxpool.Pool and pgxmock pools.
type PgxPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type AppointmentRepository struct {
	pool PgxPool
}

func NewAppointmentRepository(pool PgxPool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const selectAppointment = `
	SELECT a.id::text, a.patient_id::text, a.service_id::text, COALESCE(a.appointment_type, ''),
		a.provider_id, a.start_time, a.duration_minutes, a.status, COALESCE(a.notes, ''),
		COALESCE(p.full_name, ''), COALESCE(p.phone, ''), a.updated_at
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id
	WHERE a.id = $1::uuid`

// appointmentID canonicalizes id. Anything that is not a uuid cannot name a
// row, so it is reported as not found without a round trip.
func appointmentID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", model.ErrNotFound
	}
	return u.String(), nil
}

// Get reads the appointment projection outside of any transaction.
func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	key, err := appointmentID(id)
	if err != nil {
		return model.Appointment{}, err
	}
	return scanAppointment(r.pool.QueryRow(ctx, selectAppointment, key))
}

// GetForUpdate reads the appointment and locks its row until tx ends.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	key, err := appointmentID(id)
	if err != nil {
		return model.Appointment{}, err
	}
	return scanAppointment(tx.QueryRow(ctx, selectAppointment+`
	FOR UPDATE OF a`, key))
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt   model.Appointment
		status string
	)
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.ServiceID,
		&appt.Type,
		&appt.ProviderID,
		&appt.StartTime,
		&appt.DurationMinutes,
		&status,
		&appt.Notes,
		&appt.Patient.Name,
		&appt.Patient.Phone,
		&appt.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, model.ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.Patient.ID = appt.PatientID
	return appt, nil
}

// LockProviderDay serializes writers placing appointments on the same
// provider's day. The lock is released when tx ends.
func (r *AppointmentRepository) LockProviderDay(ctx context.Context, tx pgx.Tx, providerID string, day time.Time) error {
	key := fmt.Sprintf("appointments:%s:%s", providerID, day.Format(time.DateOnly))
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

// ListSlots returns the slots still occupying providerID's timeline that start
// in [from, to), excluding excludeID. q may be a pool or a transaction; an
// empty excludeID excludes nothing.
func (r *AppointmentRepository) ListSlots(ctx context.Context, q Querier, providerID string, from, to time.Time, excludeID string) ([]model.TimeSlot, error) {
	if q == nil {
		q = r.pool
	}
	var exclude *string
	if excludeID != "" {
		key, err := appointmentID(excludeID)
		if err != nil {
			return nil, err
		}
		exclude = &key
	}
	rows, err := q.Query(ctx, `
		SELECT id::text, start_time, duration_minutes
		FROM appointments
		WHERE provider_id = $1
			AND start_time >= $2
			AND start_time < $3
			AND status <> ALL($5::text[])
			AND id IS DISTINCT FROM $4::uuid
		ORDER BY start_time ASC
	`, providerID, from, to, exclude, model.ReleasedStatuses())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.TimeSlot
	for rows.Next() {
		var (
			id      string
			start   time.Time
			minutes int
		)
		if err := rows.Scan(&id, &start, &minutes); err != nil {
			return nil, err
		}
		slots = append(slots, model.TimeSlot{
			ID:         id,
			Start:      start,
			End:        start.Add(time.Duration(minutes) * time.Minute),
			ResourceID: providerID,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, id string, start time.Time, providerID *string) (time.Time, error) {
	key, err := appointmentID(id)
	if err != nil {
		return time.Time{}, err
	}
	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
			provider_id = $3,
			updated_at = now()
		WHERE id = $1::uuid
		RETURNING updated_at
	`, key, start, providerID).Scan(&updatedAt)
	return updatedAt, notFound(err)
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (time.Time, error) {
	key, err := appointmentID(id)
	if err != nil {
		return time.Time{}, err
	}
	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			updated_at = now()
		WHERE id = $1::uuid
		RETURNING updated_at
	`, key, string(status)).Scan(&updatedAt)
	return updatedAt, notFound(err)
}

// Cancel marks the appointment cancelled and replaces its notes with the
// already appended log.
func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, id, notes string) (time.Time, error) {
	key, err := appointmentID(id)
	if err != nil {
		return time.Time{}, err
	}
	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			notes = $2,
			updated_at = now()
		WHERE id = $1::uuid
		RETURNING updated_at
	`, key, notes).Scan(&updatedAt)
	return updatedAt, notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}
