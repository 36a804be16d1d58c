package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/events"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer forwards assignment events to a Kafka topic.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewProducer creates a producer writing to topic. Writes are buffered:
// SendEvent returns once the message is queued and delivery failures are
// logged from the writer's completion callback.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	p := newProducer(w, logger)
	w.Completion = p.completed
	return p
}

func newProducer(w messageWriter, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{writer: w, logger: logger}
}

// Register subscribes the producer to every assignment event.
func (p *Producer) Register(d events.Dispatcher) {
	events.SubscribeAll(d, p.SendEvent)
}

// SendEvent publishes event keyed by ticket id so a ticket's events stay
// in one partition.
func (p *Producer) SendEvent(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("sent event to kafka", zap.String("event", string(event.Type)), zap.String("ticket_id", event.TicketID))
	return nil
}

func (p *Producer) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		p.logger.Warn("kafka delivery failed",
			zap.String("ticket_id", string(m.Key)),
			zap.String("event", headerValue(m, "event_type")),
			zap.Error(err))
	}
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
