package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/sankalp/sankalp/internal/cache"
)

// sentTTL is how long a delivered message ID is remembered for
// de-duplication of redeliveries.
const sentTTL = 7 * 24 * time.Hour

// AMQP publishes messages to a durable RabbitMQ queue.
type AMQP struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu sync.Mutex // amqp.Channel is not safe for concurrent Publish
}

// DialAMQP connects to the broker and declares queue as durable.
func DialAMQP(url, queue string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: opening channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declaring queue %s: %w", queue, err)
	}

	return &AMQP{conn: conn, ch: ch, queue: queue}, nil
}

func (a *AMQP) Publish(_ context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: encoding message: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	err = a.ch.Publish(
		"",      // default exchange
		a.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.CreatedAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("notify: publishing %s: %w", msg.ID, err)
	}
	return nil
}

// Consume delivers queued messages through w until ctx is cancelled or the
// broker closes the delivery channel. It uses its own channel so consuming
// never blocks publishing.
func (a *AMQP) Consume(ctx context.Context, w *Worker) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("notify: opening consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("notify: setting prefetch: %w", err)
	}

	deliveries, err := ch.Consume(
		a.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("notify: consuming %s: %w", a.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("notify: delivery channel closed")
			}
			switch err := w.Handle(ctx, d.Body); {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrMalformed):
				_ = d.Nack(false, false) // requeueing would loop forever
			default:
				_ = d.Nack(false, true)
			}
		}
	}
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ch.Close(); err != nil {
		a.conn.Close()
		return err
	}
	return a.conn.Close()
}

// ErrMalformed marks a queue item that can never be delivered.
var ErrMalformed = errors.New("notify: malformed message")

// Worker turns queued payloads into sent mail exactly once per message ID,
// as far as the cache remembers.
type Worker struct {
	sender Sender
	sent   cache.Store
	logger *slog.Logger
}

func NewWorker(sender Sender, sent cache.Store, logger *slog.Logger) *Worker {
	return &Worker{sender: sender, sent: sent, logger: logger}
}

// Handle decodes body and sends it unless its ID was already delivered.
// A nil return means the item can be acknowledged.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil || msg.ID == "" || msg.To == "" {
		w.logger.Error("dropping malformed notification", slog.Int("bytes", len(body)))
		return ErrMalformed
	}

	key := "notify:sent:" + msg.ID
	_, err := w.sent.Get(ctx, key)
	if err == nil {
		w.logger.Debug("notification already sent", slog.String("id", msg.ID))
		return nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return fmt.Errorf("notify: checking sent marker: %w", err)
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		w.logger.Warn("notification send failed, will retry",
			slog.String("id", msg.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := w.sent.Set(ctx, key, string(msg.Kind), sentTTL); err != nil {
		w.logger.Warn("could not record sent notification",
			slog.String("id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
