package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAppointmentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAppointmentMetrics(reg)

	m.ObserveOperation("cancel", "ok", 20*time.Millisecond)
	m.ObserveOperation("cancel", "ok", 10*time.Millisecond)
	m.ObserveOperation("reschedule", "conflict", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("cancel", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("reschedule", "conflict")))
}

func TestNotifyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewNotifyMetrics(reg)

	m.ObserveDelivery("waitlist", "slot_freed", errors.New("down"))
	m.ObserveDelivery("sync", "appointment_cancelled", nil)
	m.ObserveDropped("sync")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("waitlist", "slot_freed", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("sync", "appointment_cancelled", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("sync")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var a *AppointmentMetrics
	var n *NotifyMetrics
	assert.NotPanics(t, func() {
		a.ObserveOperation("confirm", "ok", time.Second)
		n.ObserveDelivery("sync", "appointment_updated", nil)
		n.ObserveDropped("sync")
	})
}
