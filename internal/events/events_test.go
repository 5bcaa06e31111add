package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/emerald-details/internal/logging"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.pending[0]
	r.pending = r.pending[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type memInbox struct {
	mu   sync.Mutex
	seen map[string]string
}

func (i *memInbox) Seen(_ context.Context, id string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.seen[id]
	return ok, nil
}

func (i *memInbox) Mark(_ context.Context, id, typ string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[id] = typ
	return nil
}

func TestProducer_PublishEnvelopeAndHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	w := &fakeWriter{}
	p := newProducer(w, "emerald.events", logging.Discard())
	p.now = func() time.Time { return time.Date(2025, 6, 18, 16, 0, 0, 0, time.UTC) }

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03},
		SpanID:     trace.SpanID{0x04, 0x05},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	payload := map[string]string{"appointment_id": "a-1", "status": "pending"}
	require.NoError(t, p.Publish(ctx, "APPOINTMENT_CREATED", "a-1", payload))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("a-1"), msg.Key)
	assert.Equal(t, "APPOINTMENT_CREATED", headerValue(msg.Headers, HeaderEventType))
	assert.NotEmpty(t, headerValue(msg.Headers, HeaderEventID))
	assert.Contains(t, headerValue(msg.Headers, "traceparent"), sc.TraceID().String())

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, headerValue(msg.Headers, HeaderEventID), env.EventID)
	assert.Equal(t, "a-1", env.Key)
	assert.True(t, env.OccurredAt.Equal(time.Date(2025, 6, 18, 16, 0, 0, 0, time.UTC)))

	var decoded map[string]string
	require.NoError(t, env.Decode(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestProducer_WriteError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, "t", logging.Discard())
	err := p.Publish(context.Background(), "X", "k", struct{}{})
	assert.ErrorContains(t, err, "broker down")
}

func envelopeMessage(t *testing.T, offset int64, id, typ string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(Envelope{EventID: id, EventType: typ, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestConsumer_DedupesAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		pending: []kafka.Message{
			envelopeMessage(t, 1, "e1", "APPOINTMENT_CREATED"),
			envelopeMessage(t, 2, "e1", "APPOINTMENT_CREATED"),
			{Offset: 3, Value: []byte("not json")},
			envelopeMessage(t, 4, "e2", "APPOINTMENT_CANCELLED"),
		},
	}
	inbox := &memInbox{seen: map[string]string{}}

	var handled []string
	handler := func(_ context.Context, env Envelope) error {
		handled = append(handled, env.EventID)
		return nil
	}

	c := newConsumer(reader, ConsumerConfig{}, inbox, handler, logging.Discard())
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []string{"e1", "e2"}, handled)
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	assert.Equal(t, "APPOINTMENT_CANCELLED", inbox.seen["e2"])
}

func TestConsumer_RetriesThenGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel:  cancel,
		pending: []kafka.Message{envelopeMessage(t, 7, "e7", "APPOINTMENT_CONFIRMED")},
	}
	inbox := &memInbox{seen: map[string]string{}}

	calls := 0
	handler := func(context.Context, Envelope) error {
		calls++
		return errors.New("sms provider unavailable")
	}

	c := newConsumer(reader, ConsumerConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, inbox, handler, logging.Discard())
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, 3, calls)
	assert.Empty(t, inbox.seen, "failed events are not marked processed")
	assert.Equal(t, []int64{7}, reader.committed)
}
