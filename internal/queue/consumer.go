package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/lab-booking/internal/config"
	"github.com/iliyamo/lab-booking/internal/model"
)

// DecisionSink stores decisions taken off the queue.
type DecisionSink interface {
	RecordDecision(ctx context.Context, d model.Decision) error
}

// StartDecisionConsumer connects to RabbitMQ, declares the decision queue
// and hands every message to sink.  Handled messages are acked; malformed
// ones and ones the sink refuses are rejected without requeue so a bad
// message cannot spin.  The loop reconnects with backoff and returns only
// when ctx is cancelled.
func StartDecisionConsumer(ctx context.Context, cfg config.QueueConfig, sink DecisionSink) error {
	if cfg.Queue == "" {
		cfg.Queue = config.DecisionQueue
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Printf("decision-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg.Queue, sink)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("decision-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, sink DecisionSink) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("decision-consumer: set QoS failed: %v", err)
	}
	if err := declare(ch, queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, sink, d.Body); err != nil {
				log.Printf("decision-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(ctx context.Context, sink DecisionSink, body []byte) error {
	var ev BookingDecidedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	d, err := ev.ToDecision()
	if err != nil {
		return fmt.Errorf("event %q: %w", ev.EventID, err)
	}
	if err := sink.RecordDecision(ctx, d); err != nil {
		return fmt.Errorf("record %s: %w", d.EventID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
