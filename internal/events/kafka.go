package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront-checkout-backend/pkg/logger"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("event publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events and writes them from a single goroutine.
type KafkaPublisher struct {
	w        messageWriter
	producer string
	inbox    chan kafka.Message
	closed   chan struct{}
	done     chan struct{}
}

func NewKafkaPublisher(brokers []string, topic, producer string, buf int) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(writer, producer, buf)
}

func newKafkaPublisher(w messageWriter, producer string, buf int) *KafkaPublisher {
	if buf <= 0 {
		buf = 64
	}
	return &KafkaPublisher{
		w:        w,
		producer: producer,
		inbox:    make(chan kafka.Message, buf),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the write loop until ctx is done or Close is called. Buffered
// messages are flushed before the writer is closed.
func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.closed:
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *KafkaPublisher) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				logger.Error(err, "Failed to close kafka writer", nil)
			}
			return
		}
	}
}

func (p *KafkaPublisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		logger.Error(err, "Failed to publish payment event", map[string]interface{}{
			"key": string(m.Key),
		})
	}
}

// Publish enqueues event. It blocks while the buffer is full, until ctx is
// done.
func (p *KafkaPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	envelope, err := Wrap(p.producer, event, time.Now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   PartitionKey(event.OrderID),
		Value: value,
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	select {
	case <-p.closed:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.inbox <- msg:
		return nil
	case <-p.closed:
		return ErrPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and flushes the buffer.
func (p *KafkaPublisher) Close() {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
}

// WaitClosed blocks until the write loop has exited.
func (p *KafkaPublisher) WaitClosed() { <-p.done }
