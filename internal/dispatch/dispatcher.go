// internal/dispatch/dispatcher.go
// Package dispatch orchestrates a single delivery attempt: adapter selection,
// send, and status bookkeeping. Outcomes are always recorded in the store
// before the error is re-raised to the queue bridge.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"notification-service/internal/channel"
	"notification-service/internal/common/errors"
	"notification-service/internal/common/logger"
	"notification-service/internal/common/metrics"
	"notification-service/internal/common/observability"
	"notification-service/internal/models"
)

// NotificationStore is the slice of the store the dispatcher needs.
type NotificationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, retryCount int, errMsg string) error
}

type Dispatcher struct {
	store    NotificationStore
	adapters channel.Registry
	obs      *observability.Observability // optional
	logger   logger.Logger
}

func New(store NotificationStore, adapters channel.Registry, obs *observability.Observability, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		adapters: adapters,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch runs one delivery attempt for the notification referenced by the
// queue message. The persisted record is authoritative: its status and
// retryCount are re-read here, so a redelivered message with a stale counter
// can neither reset nor double-count retries.
//
// The returned error's Retryable classification tells the queue bridge
// whether to requeue: transient failures under the retry budget are
// retryable, everything else (success, terminal records, permanent errors,
// exhausted budget) ends the message's life on the queue.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *models.Notification) error {
	log := d.logger.WithFields(map[string]interface{}{
		"id":   msg.ID.String(),
		"type": string(msg.Type),
	})

	n, err := d.store.GetByID(ctx, msg.ID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotificationNotFound) {
			// Logic bug or race with deletion; nothing to deliver.
			log.Error("notification missing from store", map[string]interface{}{"error": err.Error()})
			return err
		}
		return errors.NewStoreUnavailableError(err)
	}

	if n.Terminal() {
		log.Info("skipping terminal notification", map[string]interface{}{
			"status":     string(n.Status),
			"retryCount": n.RetryCount,
		})
		return nil
	}

	adapter, err := d.adapters.ForType(n.Type)
	if err != nil {
		return d.recordFailure(ctx, log, n, err)
	}

	start := time.Now()
	sendErr := adapter.Send(ctx, n)
	elapsed := time.Since(start)

	metrics.DeliveryDuration.WithLabelValues(string(n.Type)).Observe(elapsed.Seconds())
	if d.obs != nil {
		d.obs.RecordDeliveryDuration(ctx, elapsed, string(n.Type))
	}

	if sendErr != nil {
		return d.recordFailure(ctx, log, n, sendErr)
	}

	// retryCount is unchanged on success: it counts failed attempts only.
	if err := d.store.UpdateStatus(ctx, n.ID, models.StatusSent, n.RetryCount, ""); err != nil {
		// The send happened but the record still says PENDING. Requeue and
		// let the terminal check swallow the duplicate if the write lands
		// before redelivery; at-least-once allows the double send otherwise.
		log.Error("failed to record sent status", map[string]interface{}{"error": err.Error()})
		return errors.NewStoreUnavailableError(err)
	}

	metrics.DeliveriesCompleted.WithLabelValues(string(n.Type)).Inc()
	if d.obs != nil {
		d.obs.RecordDelivery(ctx, string(n.Type), "sent")
	}
	log.Info("notification delivered", map[string]interface{}{"durationMs": elapsed.Milliseconds()})

	return nil
}

// recordFailure increments the retry counter, computes the next status and
// persists both together with the failure message, then re-raises an error
// classified for the queue boundary.
func (d *Dispatcher) recordFailure(ctx context.Context, log logger.Logger, n *models.Notification, sendErr error) error {
	retryCount := n.RetryCount + 1

	status := models.StatusPending
	if !errors.IsRetryable(sendErr) || retryCount >= models.MaxRetries {
		// Permanent failures terminate immediately; transient ones only
		// once the retry budget is spent.
		status = models.StatusFailed
	}

	if err := d.store.UpdateStatus(ctx, n.ID, status, retryCount, sendErr.Error()); err != nil {
		log.Error("failed to record delivery failure", map[string]interface{}{"error": err.Error()})
		return errors.NewStoreUnavailableError(err)
	}

	metrics.DeliveriesFailed.WithLabelValues(string(n.Type), string(errors.GetCode(sendErr))).Inc()
	if d.obs != nil {
		d.obs.RecordDelivery(ctx, string(n.Type), "failed")
	}

	log.Warn("delivery attempt failed", map[string]interface{}{
		"error":      sendErr.Error(),
		"retryCount": retryCount,
		"status":     string(status),
	})

	if status == models.StatusFailed {
		if errors.IsRetryable(sendErr) {
			// Transient error, budget exhausted: stop the queue from
			// redelivering a pinned FAILED record.
			return errors.NewRetriesExhaustedError(retryCount, sendErr)
		}
		return sendErr
	}

	metrics.DeliveryRetries.WithLabelValues(string(n.Type)).Inc()
	return sendErr
}
