// internal/channel/adapter.go
// Package channel contains the per-type delivery adapters. Each adapter
// implements the same send capability; selection is a pure function of the
// notification type over a fixed table built at startup.
package channel

import (
	"context"

	"notification-service/internal/common/errors"
	"notification-service/internal/models"
)

// Adapter sends one notification over its channel. One call, one outbound
// message; adapters never touch the persisted record.
type Adapter interface {
	Send(ctx context.Context, n *models.Notification) error
}

// Registry is the closed type-to-adapter table.
type Registry map[models.Type]Adapter

// ForType selects the adapter for a notification type. An unrecognized type
// is a permanent error and must never be requeued.
func (r Registry) ForType(t models.Type) (Adapter, error) {
	adapter, ok := r[t]
	if !ok {
		return nil, errors.NewUnsupportedTypeError(string(t))
	}
	return adapter, nil
}
