// internal/queue/bridge.go
// Package queue is the durable hand-off between ingestion and dispatch.
// Messages are the full notification record as persistent JSON on a durable
// RabbitMQ queue; delivery is at-least-once with manual acknowledgment.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"notification-service/internal/common/errors"
	"notification-service/internal/common/logger"
	"notification-service/internal/common/metrics"
	"notification-service/internal/models"
)

const consumerTag = "notification-dispatcher"

// Handler processes one consumed notification message. Its returned error's
// Retryable classification decides requeue vs acknowledge.
type Handler func(ctx context.Context, msg *models.Notification) error

type Bridge struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	prefetch  int
	logger    logger.Logger

	closeOnce sync.Once
}

// Connect dials the broker, opens a channel and declares the durable queue.
// Broker unavailability here is fatal to the caller by contract.
func Connect(url, queueName string, prefetch int, log logger.Logger) (*Bridge, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable: survive broker restart
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Bridge{
		conn:      conn,
		ch:        ch,
		queueName: queueName,
		prefetch:  prefetch,
		logger:    log.WithFields(map[string]interface{}{"component": "queue", "queue": queueName}),
	}, nil
}

// Publish enqueues the full notification as a persistent message. On error
// the caller owns the decision about the already-persisted record; this
// service leaves it PENDING for manual recovery.
func (b *Bridge) Publish(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.NewQueuePublishError(err)
	}

	err = b.ch.PublishWithContext(ctx,
		"",          // default exchange
		b.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return errors.NewQueuePublishError(err)
	}

	return nil
}

// Consume runs workerCount competing consumers over the queue until ctx is
// cancelled, then stops accepting deliveries, lets in-flight handlers finish
// and returns. Each worker acknowledges processed messages individually;
// only retryable handler errors are requeued.
func (b *Bridge) Consume(ctx context.Context, workerCount int, handle Handler) error {
	deliveries, err := b.ch.Consume(
		b.queueName,
		consumerTag,
		false, // autoAck: acknowledgment reflects the dispatch outcome
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		metrics.QueueDepthConsumers.Inc()
		go func(worker int) {
			defer wg.Done()
			defer metrics.QueueDepthConsumers.Dec()

			log := b.logger.WithFields(map[string]interface{}{"worker": worker})
			log.Info("consumer worker started", nil)

			for d := range deliveries {
				b.process(ctx, log, d, handle)
			}

			log.Info("consumer worker stopped", nil)
		}(i)
	}

	// Cancelling the consumer closes the deliveries channel once the broker
	// confirms, which drains the workers above.
	<-ctx.Done()
	if err := b.ch.Cancel(consumerTag, false); err != nil {
		b.logger.Warn("failed to cancel consumer", map[string]interface{}{"error": err.Error()})
	}

	wg.Wait()
	return nil
}

func (b *Bridge) process(ctx context.Context, log logger.Logger, d amqp.Delivery, handle Handler) {
	var msg models.Notification
	// Unknown extra fields are ignored for forward compatibility.
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// A malformed payload can never become deliverable; drop it.
		log.Error("failed to decode message, dropping", map[string]interface{}{"error": err.Error()})
		if err := d.Ack(false); err != nil {
			log.Error("failed to ack malformed message", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	// Shutdown cancellation must not abort a delivery that is already in
	// flight; the handler gets a context detached from the consumer's.
	err := handle(context.WithoutCancel(ctx), &msg)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Error("failed to ack message", map[string]interface{}{"id": msg.ID.String(), "error": err.Error()})
		}
		return
	}

	if shouldRequeue(err) {
		log.Warn("requeueing notification", map[string]interface{}{
			"id":    msg.ID.String(),
			"error": err.Error(),
		})
		if err := d.Nack(false, true); err != nil {
			log.Error("failed to nack message", map[string]interface{}{"id": msg.ID.String(), "error": err.Error()})
		}
		return
	}

	// Permanent failure or exhausted retries: the record already says
	// FAILED, remove the message so it is never redelivered.
	log.Info("discarding message after terminal failure", map[string]interface{}{
		"id":    msg.ID.String(),
		"error": err.Error(),
	})
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", map[string]interface{}{"id": msg.ID.String(), "error": err.Error()})
	}
}

// shouldRequeue gates redelivery on the error classification, not on the
// broker's own redelivery count.
func shouldRequeue(err error) bool {
	return errors.IsRetryable(err)
}

// Close shuts the channel before the connection so in-flight
// acknowledgments complete first.
func (b *Bridge) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.ch != nil {
			if err := b.ch.Close(); err != nil {
				closeErr = fmt.Errorf("close channel: %w", err)
			}
		}
		if b.conn != nil {
			if err := b.conn.Close(); err != nil && closeErr == nil {
				closeErr = fmt.Errorf("close connection: %w", err)
			}
		}
	})
	return closeErr
}
