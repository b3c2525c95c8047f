package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/appointments"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case r.drained <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type memoryInbox struct {
	seen map[string]bool
}

func (i *memoryInbox) Record(_ context.Context, id, _ string) (bool, error) {
	if i.seen[id] {
		return false, nil
	}
	i.seen[id] = true
	return true, nil
}

func (i *memoryInbox) Forget(_ context.Context, id string) error {
	delete(i.seen, id)
	return nil
}

type fakeRecorder struct {
	calls  []string
	errs   map[string]error
	queued map[string][]error
}

func (r *fakeRecorder) RecordOutcome(_ context.Context, id string, outcome model.Status) (appointments.Result, error) {
	r.calls = append(r.calls, id+":"+string(outcome))
	if q := r.queued[id]; len(q) > 0 {
		r.queued[id] = q[1:]
		return appointments.Result{}, q[0]
	}
	return appointments.Result{Changed: true}, r.errs[id]
}

func outcomeMessage(eventID, body string) kafka.Message {
	return kafka.Message{
		Topic: DefaultOutcomeTopic,
		Value: []byte(body),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(DefaultOutcomeTopic)},
		},
	}
}

func TestConsumerAppliesOutcomesOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := &fakeReader{
		drained: make(chan struct{}, 1),
		msgs: []kafka.Message{
			outcomeMessage("e1", `{"appointment_id":"a","outcome":"completed"}`),
			outcomeMessage("e1", `{"appointment_id":"a","outcome":"completed"}`),
			outcomeMessage("e2", `{"appointment_id":"gone","outcome":"no_show"}`),
			outcomeMessage("e3", `not json`),
			outcomeMessage("e4", `{"appointment_id":"flaky","outcome":"NO_SHOW"}`),
		},
	}
	inbox := &memoryInbox{seen: map[string]bool{}}
	recorder := &fakeRecorder{errs: map[string]error{
		"gone":  fmt.Errorf("appointments: record_outcome gone: %w", appointments.ErrNotFound),
		"flaky": errors.New("connection reset"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(reader, logger, inbox, OutcomeHandler(recorder, logger)).WithRetry(2, time.Millisecond).Run(ctx)
		close(done)
	}()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	<-done

	assert.Equal(t, []string{"a:completed", "gone:no_show", "flaky:no_show", "flaky:no_show"}, recorder.calls)
	assert.Len(t, reader.committed, 5)
	assert.False(t, inbox.seen["e4"])
	assert.True(t, reader.closed)
}

func TestOutcomeHandlerSkipsRejectedTransitions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := &fakeRecorder{errs: map[string]error{
		"a": &lifecycle.InvalidTransitionError{From: model.StatusPresent, To: model.StatusNoShow},
	}}
	h := OutcomeHandler(recorder, logger)

	require.NoError(t, h(context.Background(), outcomeMessage("e1", `{"appointment_id":"a","outcome":"no_show"}`)))
	require.NoError(t, h(context.Background(), outcomeMessage("e2", `{"appointment_id":"a","outcome":"present"}`)))
	assert.Equal(t, []string{"a:no_show"}, recorder.calls)
}

func TestConsumerStopsRetryingOnShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := &fakeReader{
		drained: make(chan struct{}, 1),
		msgs:    []kafka.Message{outcomeMessage("e1", `{"appointment_id":"flaky","outcome":"completed"}`)},
	}
	inbox := &memoryInbox{seen: map[string]bool{}}
	recorder := &fakeRecorder{errs: map[string]error{"flaky": errors.New("connection reset")}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(reader, logger, inbox, OutcomeHandler(recorder, logger)).WithRetry(10, time.Hour).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.msgs) == 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, reader.committed)
	assert.False(t, inbox.seen["e1"])
}

func TestConsumerDeliversKeyedEventsWithoutEventID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keyed := func(offset int64) kafka.Message {
		return kafka.Message{
			Topic:  DefaultOutcomeTopic,
			Key:    []byte("a"),
			Offset: offset,
			Value:  []byte(`{"appointment_id":"a","outcome":"completed"}`),
		}
	}
	reader := &fakeReader{
		drained: make(chan struct{}, 1),
		msgs:    []kafka.Message{keyed(1), keyed(2), keyed(2)},
	}
	inbox := &memoryInbox{seen: map[string]bool{}}
	recorder := &fakeRecorder{queued: map[string][]error{
		"a": {&lifecycle.InvalidTransitionError{From: model.StatusScheduled, To: model.StatusCompleted}},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(reader, logger, inbox, OutcomeHandler(recorder, logger)).Run(ctx)
		close(done)
	}()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	<-done

	assert.Equal(t, []string{"a:completed", "a:completed"}, recorder.calls)
	assert.Len(t, reader.committed, 3)
	assert.True(t, inbox.seen[DefaultOutcomeTopic+"/0/2"])
}
