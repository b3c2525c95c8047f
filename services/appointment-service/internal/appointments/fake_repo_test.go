package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/notify"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/storage"
)

// fakeRepo keeps committed rows in memory. Writes made through a fakeTx only
// become visible when the transaction commits.
type fakeRepo struct {
	mu        sync.Mutex
	rows      map[string]model.Appointment
	updateErr error
	beginWait bool
	commits   int
	rollbacks int
	begins    int
	locks     []string
	listed    [][2]time.Time
}

type fakeTx struct {
	pgx.Tx
	repo   *fakeRepo
	staged map[string]model.Appointment
	done   bool
}

func newFakeRepo(appts ...model.Appointment) *fakeRepo {
	r := &fakeRepo{rows: map[string]model.Appointment{}}
	for _, a := range appts {
		r.rows[a.ID] = a
	}
	return r
}

func (r *fakeRepo) row(id string) model.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *fakeRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	if r.beginWait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins++
	return &fakeTx{repo: r, staged: map[string]model.Appointment{}}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for id, a := range t.staged {
		t.repo.rows[id] = a
	}
	t.repo.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.rollbacks++
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	if a, ok := tx.(*fakeTx).staged[id]; ok {
		return a, nil
	}
	return r.Get(ctx, id)
}

func (r *fakeRepo) LockProviderDay(_ context.Context, _ pgx.Tx, providerID string, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, providerID+"@"+day.Format(time.RFC3339))
	return nil
}

func (r *fakeRepo) ListSlots(_ context.Context, _ storage.Querier, providerID string, from, to time.Time, excludeID string) ([]model.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listed = append(r.listed, [2]time.Time{from, to})
	var slots []model.TimeSlot
	for _, a := range r.rows {
		if a.ID == excludeID || a.ProviderID == nil || *a.ProviderID != providerID || !a.Status.BlocksSchedule() {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		slot, _ := a.Slot()
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

func (r *fakeRepo) stage(ctx context.Context, tx pgx.Tx, id string, mutate func(*model.Appointment)) (time.Time, error) {
	if r.updateErr != nil {
		return time.Time{}, r.updateErr
	}
	a, err := r.GetForUpdate(ctx, tx, id)
	if err != nil {
		return time.Time{}, err
	}
	mutate(&a)
	a.UpdatedAt = fixedNow
	tx.(*fakeTx).staged[id] = a
	return a.UpdatedAt, nil
}

func (r *fakeRepo) UpdateSchedule(ctx context.Context, tx pgx.Tx, id string, start time.Time, providerID *string) (time.Time, error) {
	return r.stage(ctx, tx, id, func(a *model.Appointment) {
		a.StartTime = start
		a.ProviderID = providerID
	})
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (time.Time, error) {
	return r.stage(ctx, tx, id, func(a *model.Appointment) { a.Status = status })
}

func (r *fakeRepo) Cancel(ctx context.Context, tx pgx.Tx, id, notes string) (time.Time, error) {
	return r.stage(ctx, tx, id, func(a *model.Appointment) {
		a.Status = model.StatusCancelled
		a.Notes = notes
	})
}

type recordingNotifier struct {
	mu        sync.Mutex
	updated   []notify.AppointmentUpdated
	cancelled []notify.AppointmentCancelled
	freed     []notify.SlotFreed
}

func (n *recordingNotifier) AppointmentUpdated(_ context.Context, ev notify.AppointmentUpdated) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, ev)
}

func (n *recordingNotifier) AppointmentCancelled(_ context.Context, ev notify.AppointmentCancelled, freed notify.SlotFreed) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, ev)
	n.freed = append(n.freed, freed)
}
