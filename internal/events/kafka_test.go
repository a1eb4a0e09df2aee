package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
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

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaForwarder(t *testing.T) {
	logger := zerolog.New(io.Discard)
	writer := &fakeWriter{}
	fwd := NewKafkaForwarder(writer, 4, &logger)

	bus := NewEventBus(&logger)
	fwd.Register(bus, AppointmentEvents...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fwd.Run(ctx)
		close(done)
	}()

	require.NoError(t, bus.PublishJSON(EventAppointmentCreated, AppointmentEventPayload{AppointmentID: "appt-42"}))
	require.NoError(t, bus.PublishJSON("unrelated", map[string]string{}))

	require.Eventually(t, func() bool { return writer.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	writer.mu.Lock()
	msg := writer.msgs[0]
	writer.mu.Unlock()
	assert.Equal(t, "appt-42", string(msg.Key))
	assert.Equal(t, EventAppointmentCreated, header(msg, "event_type"))
	assert.NotEmpty(t, header(msg, "event_id"))

	cancel()
	<-done
	assert.True(t, writer.closed)
}

func TestKafkaForwarderBufferFull(t *testing.T) {
	logger := zerolog.New(io.Discard)
	fwd := NewKafkaForwarder(&fakeWriter{err: errors.New("unused")}, 1, &logger)

	require.NoError(t, fwd.Handle(&Event{Type: "a"}))
	assert.ErrorIs(t, fwd.Handle(&Event{Type: "b"}), ErrForwarderFull)
}

func TestMessageKeyFallsBackToEventID(t *testing.T) {
	msg := Message(context.Background(), &Event{ID: "evt-1", Type: "x", Payload: []byte(`{"transaction_id":""}`)})
	assert.Equal(t, "evt-1", string(msg.Key))

	msg = Message(context.Background(), &Event{ID: "evt-2", Type: "x", Payload: []byte(`{"transaction_id":"tx-9"}`)})
	assert.Equal(t, "tx-9", string(msg.Key))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}
