package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageWriter is the subset of *kafka.Writer used by the forwarder.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var ErrForwarderFull = errors.New("kafka forwarder buffer is full")

// KafkaForwarder relays bus events to a Kafka topic from a background loop.
type KafkaForwarder struct {
	writer  MessageWriter
	queue   chan *Event
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewKafkaWriter builds a writer for brokers that keys partitions by aggregate id.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaForwarder(writer MessageWriter, buffer int, logger *zerolog.Logger) *KafkaForwarder {
	if buffer <= 0 {
		buffer = 256
	}
	return &KafkaForwarder{
		writer:  writer,
		queue:   make(chan *Event, buffer),
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Handle queues the event without blocking the publisher.
func (f *KafkaForwarder) Handle(event *Event) error {
	select {
	case f.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrForwarderFull, event.Type)
	}
}

// Register subscribes the forwarder to eventTypes on bus.
func (f *KafkaForwarder) Register(bus *EventBus, eventTypes ...string) {
	bus.SubscribeMany(eventTypes, f.Handle)
}

// Run writes queued events until ctx is done, then closes the writer.
func (f *KafkaForwarder) Run(ctx context.Context) {
	defer f.writer.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.queue:
			if err := f.write(ctx, event); err != nil {
				f.logger.Error().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("Failed to forward event to kafka")
			}
		}
	}
}

func (f *KafkaForwarder) write(ctx context.Context, event *Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.writer.WriteMessages(writeCtx, Message(ctx, event))
}

// Message converts an event to a Kafka message keyed by the aggregate id
// and carrying the trace context of ctx.
func Message(ctx context.Context, event *Event) kafka.Message {
	msg := kafka.Message{
		Key:   []byte(aggregateID(event)),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	carrier := &headerCarrier{headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.headers
	return msg
}

func aggregateID(event *Event) string {
	var ids struct {
		AppointmentID string `json:"appointment_id"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(event.Payload, &ids); err == nil {
		if ids.AppointmentID != "" {
			return ids.AppointmentID
		}
		if ids.TransactionID != "" {
			return ids.TransactionID
		}
	}
	return event.ID
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
