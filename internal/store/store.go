// internal/store/store.go
// Package store is the durable record of notifications and their delivery
// status. It exclusively owns the canonical status/retryCount/error fields;
// queue redelivery state never lives here.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notification-service/internal/common/errors"
	"notification-service/internal/common/logger"
	"notification-service/internal/models"
)

// CreateSpec carries the caller-supplied fields of a new notification.
// Everything else (id, status, retryCount, timestamps) is assigned here.
type CreateSpec struct {
	UserID   string
	Type     models.Type
	Title    string
	Message  string
	To       string
	Subject  string
	Metadata json.RawMessage
}

type Store struct {
	db     *sql.DB
	cache  *StatusCache // optional, nil disables caching
	logger logger.Logger
}

func New(db *sql.DB, cache *StatusCache, log logger.Logger) *Store {
	return &Store{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// Create validates the spec, assigns id and timestamps and persists the
// record with status PENDING and retryCount 0.
func (s *Store) Create(ctx context.Context, spec CreateSpec) (*models.Notification, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	n := &models.Notification{
		ID:         uuid.New(),
		UserID:     spec.UserID,
		Type:       spec.Type,
		Title:      spec.Title,
		Message:    spec.Message,
		To:         spec.To,
		Subject:    spec.Subject,
		Metadata:   spec.Metadata,
		Status:     models.StatusPending,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	query := `
		INSERT INTO notifications
			(id, user_id, type, title, message, to_address, subject, metadata, status, retry_count, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.To, n.Subject,
		metadataValue(n.Metadata), string(n.Status), n.RetryCount, n.Error, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	s.cacheStatus(ctx, n.ID, n.Status)

	return n, nil
}

// GetByID returns the canonical record. The dispatcher reads this before
// every attempt: the queue payload's retryCount is advisory only.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, to_address, subject, metadata, status, retry_count, error, created_at, updated_at
		FROM notifications
		WHERE id = $1`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError(id.String())
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}

	return n, nil
}

// ListByUser returns all notifications for a user, most recent first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, to_address, subject, metadata, status, retry_count, error, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return notifications, nil
}

// UpdateStatus overwrites the mutable delivery-state fields plus updatedAt.
// It is an idempotent last-write-wins update keyed by id.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, retryCount int, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = $1, retry_count = $2, error = $3, updated_at = $4
		WHERE id = $5`

	res, err := s.db.ExecContext(ctx, query, string(status), retryCount, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return errors.NewNotFoundError(id.String())
	}

	s.cacheStatus(ctx, id, status)

	return nil
}

// cacheStatus refreshes the status cache. Cache failures are logged, never
// surfaced: Postgres stays authoritative.
func (s *Store) cacheStatus(ctx context.Context, id uuid.UUID, status models.Status) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStatus(ctx, id, status); err != nil {
		s.logger.Warn("failed to cache notification status", map[string]interface{}{
			"id":    id.String(),
			"error": err.Error(),
		})
	}
}

func validateSpec(spec CreateSpec) error {
	if spec.UserID == "" {
		return errors.NewValidationError("userId is required")
	}
	if spec.Type == "" {
		return errors.NewValidationError("type is required")
	}
	if !spec.Type.Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown type %q", spec.Type))
	}
	if spec.Title == "" {
		return errors.NewValidationError("title is required")
	}
	if spec.Message == "" {
		return errors.NewValidationError("message is required")
	}
	if spec.Type.RequiresTo() && spec.To == "" {
		return errors.NewValidationError(fmt.Sprintf("to is required for %s notifications", spec.Type))
	}
	return nil
}

func metadataValue(m json.RawMessage) interface{} {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n        models.Notification
		typ      string
		status   string
		to       sql.NullString
		subject  sql.NullString
		metadata []byte
		errMsg   sql.NullString
	)

	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &to, &subject,
		&metadata, &status, &n.RetryCount, &errMsg, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}

	n.Type = models.Type(typ)
	n.Status = models.Status(status)
	n.To = to.String
	n.Subject = subject.String
	n.Error = errMsg.String
	if len(metadata) > 0 {
		n.Metadata = json.RawMessage(metadata)
	}

	return &n, nil
}
