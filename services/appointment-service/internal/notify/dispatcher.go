package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/metrics"
)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	CallTimeout time.Duration
}

type job struct {
	ctx           context.Context
	collaborator  string
	event         string
	appointmentID string
	call          func(ctx context.Context) error
}

// Dispatcher delivers notifications on a fixed pool of background workers.
// Callers never wait on delivery and never see its errors.
type Dispatcher struct {
	sync     Sync
	waitlist Waitlist
	logger   *slog.Logger
	metrics  *metrics.NotifyMetrics
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

func NewDispatcher(syncer Sync, waitlist Waitlist, logger *slog.Logger, m *metrics.NotifyMetrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if syncer == nil {
		syncer = NoopSync{}
	}
	if waitlist == nil {
		waitlist = NoopWaitlist{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sync:     syncer,
		waitlist: waitlist,
		logger:   logger,
		metrics:  m,
		timeout:  cfg.CallTimeout,
		jobs:     make(chan job, cfg.QueueSize),
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}
	return d
}

func (d *Dispatcher) AppointmentUpdated(ctx context.Context, ev AppointmentUpdated) {
	d.enqueue(job{
		ctx:           ctx,
		collaborator:  CollaboratorSync,
		event:         EventAppointmentUpdated,
		appointmentID: ev.AppointmentID,
		call:          func(ctx context.Context) error { return d.sync.AppointmentUpdated(ctx, ev) },
	})
}

// AppointmentCancelled queues the sync and waitlist deliveries as separate
// jobs so a failure in one never holds back the other.
func (d *Dispatcher) AppointmentCancelled(ctx context.Context, ev AppointmentCancelled, freed SlotFreed) {
	d.enqueue(job{
		ctx:           ctx,
		collaborator:  CollaboratorSync,
		event:         EventAppointmentCancelled,
		appointmentID: ev.AppointmentID,
		call:          func(ctx context.Context) error { return d.sync.AppointmentCancelled(ctx, ev) },
	})
	d.enqueue(job{
		ctx:           ctx,
		collaborator:  CollaboratorWaitlist,
		event:         EventSlotFreed,
		appointmentID: freed.AppointmentID,
		call:          func(ctx context.Context) error { return d.waitlist.SlotFreed(ctx, freed) },
	})
}

// Close stops accepting jobs and waits for queued ones until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(j job) {
	// Delivery outlives the request that triggered it but keeps its trace.
	j.ctx = context.WithoutCancel(j.ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(j, "dispatcher closed")
		return
	}
	select {
	case d.jobs <- j:
	default:
		d.drop(j, "queue full")
	}
}

func (d *Dispatcher) drop(j job, reason string) {
	d.metrics.ObserveDropped(j.collaborator)
	d.logger.Error("notification dropped",
		"reason", reason,
		"appointment_id", j.appointmentID,
		"event", j.event,
		"collaborator", j.collaborator,
	)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		err := d.run(j)
		d.metrics.ObserveDelivery(j.collaborator, j.event, err)
		if err != nil {
			d.logger.Error("notification failed",
				"err", err,
				"trace_id", otelx.TraceID(j.ctx),
				"appointment_id", j.appointmentID,
				"event", j.event,
				"collaborator", j.collaborator,
			)
		}
	}
}

func (d *Dispatcher) run(j job) (err error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return j.call(ctx)
}
