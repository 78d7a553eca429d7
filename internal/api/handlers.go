// internal/api/handlers.go
// Package api is the thin ingestion/query boundary: request mapping,
// validation, create-then-publish. Delivery itself is asynchronous and
// best-effort from the caller's perspective.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"notification-service/internal/common/errors"
	"notification-service/internal/common/logger"
	"notification-service/internal/common/metrics"
	"notification-service/internal/models"
	"notification-service/internal/store"
)

// NotificationStore is the slice of the store the API needs.
type NotificationStore interface {
	Create(ctx context.Context, spec store.CreateSpec) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
}

// Publisher hands freshly created notifications to the queue bridge.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// StatusReader is the cache-first status lookup path.
type StatusReader interface {
	GetStatus(ctx context.Context, id uuid.UUID) (models.Status, error)
}

// CreateRequest is the ingestion payload. Conditional field rules
// (to for EMAIL/SMS, subject for EMAIL) are enforced by the store.
type CreateRequest struct {
	UserID   string          `json:"userId" validate:"required"`
	Type     models.Type     `json:"type" validate:"required,oneof=EMAIL SMS IN_APP"`
	Title    string          `json:"title" validate:"required"`
	Message  string          `json:"message" validate:"required"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	To       string          `json:"to,omitempty"`
	Subject  string          `json:"subject,omitempty"`
}

type statusResponse struct {
	ID     uuid.UUID     `json:"id"`
	Status models.Status `json:"status"`
}

type Handler struct {
	store     NotificationStore
	publisher Publisher
	status    StatusReader // optional, nil disables the cache fast path
	validate  *validator.Validate
	logger    logger.Logger
}

func NewHandler(st NotificationStore, pub Publisher, status StatusReader, log logger.Logger) *Handler {
	return &Handler{
		store:     st,
		publisher: pub,
		status:    status,
		validate:  validator.New(),
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Create persists a PENDING record and publishes it for delivery. When the
// publish fails the record is deliberately left PENDING with no queue entry
// (orphan, manual recovery) and the caller gets an error.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode create request", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	spec := store.CreateSpec{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Metadata: req.Metadata,
	}
	// Channel-specific fields only apply to the channels that use them.
	switch req.Type {
	case models.TypeEmail:
		spec.To = req.To
		spec.Subject = req.Subject
	case models.TypeSMS:
		spec.To = req.To
	}

	n, err := h.store.Create(r.Context(), spec)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeValidationFailed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create notification", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}

	if err := h.publisher.Publish(r.Context(), n); err != nil {
		h.logger.Error("failed to publish notification", map[string]interface{}{
			"id":    n.ID.String(),
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "failed to queue notification")
		return
	}

	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	writeJSON(w, http.StatusCreated, n)
}

// ListByUser returns a user's notifications, most recent first.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}

	notifications, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list notifications", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "failed to fetch notifications")
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// GetStatus returns the delivery status of a single notification,
// cache-first with a store fallback.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if h.status != nil {
		if status, err := h.status.GetStatus(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, statusResponse{ID: id, Status: status})
			return
		}
	}

	n, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotificationNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to get notification", map[string]interface{}{
			"id":    id.String(),
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "failed to fetch notification")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{ID: n.ID, Status: n.Status})
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
