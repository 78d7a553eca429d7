package dispatch

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-service/internal/channel"
	"notification-service/internal/common/errors"
	"notification-service/internal/common/logger"
	"notification-service/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type mockStore struct {
	records map[uuid.UUID]*models.Notification

	updateCalls []updateCall
	getErr      error
	updateErr   error
}

type updateCall struct {
	id         uuid.UUID
	status     models.Status
	retryCount int
	errMsg     string
}

func newMockStore(records ...*models.Notification) *mockStore {
	s := &mockStore{records: map[uuid.UUID]*models.Notification{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *mockStore) GetByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	n, ok := s.records[id]
	if !ok {
		return nil, errors.NewNotFoundError(id.String())
	}
	copied := *n
	return &copied, nil
}

func (s *mockStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status, retryCount int, errMsg string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updateCalls = append(s.updateCalls, updateCall{id, status, retryCount, errMsg})
	n, ok := s.records[id]
	if !ok {
		return errors.NewNotFoundError(id.String())
	}
	n.Status = status
	n.RetryCount = retryCount
	n.Error = errMsg
	return nil
}

type mockAdapter struct {
	sendErr error
	calls   int
}

func (a *mockAdapter) Send(_ context.Context, _ *models.Notification) error {
	a.calls++
	return a.sendErr
}

func pendingNotification(t models.Type, retryCount int) *models.Notification {
	return &models.Notification{
		ID:         uuid.New(),
		UserID:     "user-1",
		Type:       t,
		Title:      "Welcome",
		Message:    "Hello there",
		To:         "user@example.com",
		Status:     models.StatusPending,
		RetryCount: retryCount,
	}
}

func newDispatcher(store NotificationStore, adapters channel.Registry, t *testing.T) *Dispatcher {
	return New(store, adapters, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestDispatch_Success(t *testing.T) {
	n := pendingNotification(models.TypeInApp, 0)
	store := newMockStore(n)
	adapter := &mockAdapter{}
	d := newDispatcher(store, channel.Registry{models.TypeInApp: adapter}, t)

	err := d.Dispatch(context.Background(), n)

	require.NoError(t, err)
	assert.Equal(t, 1, adapter.calls)
	require.Len(t, store.updateCalls, 1)
	assert.Equal(t, models.StatusSent, store.updateCalls[0].status)
	assert.Equal(t, 0, store.updateCalls[0].retryCount, "retryCount counts failed attempts only")
	assert.Empty(t, store.updateCalls[0].errMsg)
}

func TestDispatch_TransientFailure_StaysPendingUnderBudget(t *testing.T) {
	n := pendingNotification(models.TypeEmail, 0)
	store := newMockStore(n)
	sendErr := errors.NewChannelUnconfiguredError("email")
	d := newDispatcher(store, channel.Registry{models.TypeEmail: &mockAdapter{sendErr: sendErr}}, t)

	err := d.Dispatch(context.Background(), n)

	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err), "under-budget transient failure must requeue")
	require.Len(t, store.updateCalls, 1)
	assert.Equal(t, models.StatusPending, store.updateCalls[0].status)
	assert.Equal(t, 1, store.updateCalls[0].retryCount)
	assert.Contains(t, store.updateCalls[0].errMsg, "CHANNEL_UNCONFIGURED")
}

// Unconfigured SMTP: every attempt fails, the record walks retryCount
// 1, 2, 3 and lands on FAILED with the last error recorded.
func TestDispatch_UnconfiguredEmail_FailsAfterMaxRetries(t *testing.T) {
	n := pendingNotification(models.TypeEmail, 0)
	store := newMockStore(n)
	adapter := channel.NewUnconfiguredEmailAdapter()
	d := newDispatcher(store, channel.Registry{models.TypeEmail: adapter}, t)

	var lastErr error
	attempts := 0
	for {
		lastErr = d.Dispatch(context.Background(), n)
		if lastErr == nil || !errors.IsRetryable(lastErr) {
			break
		}
		attempts++
		require.Less(t, attempts, 10, "dispatch must stop requeueing eventually")
	}

	require.Error(t, lastErr)
	assert.Equal(t, errors.ErrCodeRetriesExhausted, errors.GetCode(lastErr))
	assert.False(t, errors.IsRetryable(lastErr))

	record := store.records[n.ID]
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, models.MaxRetries, record.RetryCount)
	assert.Contains(t, record.Error, "CHANNEL_UNCONFIGURED")
	require.Len(t, store.updateCalls, models.MaxRetries)
	for i, call := range store.updateCalls {
		assert.Equal(t, i+1, call.retryCount)
	}
}

func TestDispatch_PermanentFailure_FailsImmediately(t *testing.T) {
	n := pendingNotification(models.TypeEmail, 0)
	store := newMockStore(n)
	// No adapter registered for the type: permanent, never requeued.
	d := newDispatcher(store, channel.Registry{}, t)

	err := d.Dispatch(context.Background(), n)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnsupportedType, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))

	record := store.records[n.ID]
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, 1, record.RetryCount)
}

// ==========================
// Redelivery Semantics Tests
// ==========================

func TestDispatch_TerminalRecord_SkipsWithoutSending(t *testing.T) {
	tests := []struct {
		name       string
		status     models.Status
		retryCount int
	}{
		{"already sent", models.StatusSent, 0},
		{"failed at retry limit", models.StatusFailed, models.MaxRetries},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := pendingNotification(models.TypeInApp, tc.retryCount)
			n.Status = tc.status
			store := newMockStore(n)
			adapter := &mockAdapter{}
			d := newDispatcher(store, channel.Registry{models.TypeInApp: adapter}, t)

			err := d.Dispatch(context.Background(), n)

			require.NoError(t, err, "terminal records acknowledge without error")
			assert.Zero(t, adapter.calls, "no send for a terminal record")
			assert.Empty(t, store.updateCalls)
		})
	}
}

// A redelivered message may carry a stale retryCount; the persisted record
// decides the attempt number.
func TestDispatch_StaleMessageCounter_Ignored(t *testing.T) {
	n := pendingNotification(models.TypeEmail, 2)
	store := newMockStore(n)
	sendErr := errors.NewEmailDeliveryError(stderrors.New("connection refused"))
	d := newDispatcher(store, channel.Registry{models.TypeEmail: &mockAdapter{sendErr: sendErr}}, t)

	staleMsg := *n
	staleMsg.RetryCount = 0
	err := d.Dispatch(context.Background(), &staleMsg)

	require.Error(t, err)
	require.Len(t, store.updateCalls, 1)
	assert.Equal(t, 3, store.updateCalls[0].retryCount)
	assert.Equal(t, models.StatusFailed, store.updateCalls[0].status)
}

func TestDispatch_NotificationMissing_NotRequeued(t *testing.T) {
	store := newMockStore()
	d := newDispatcher(store, channel.Registry{}, t)

	msg := pendingNotification(models.TypeInApp, 0)
	err := d.Dispatch(context.Background(), msg)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationNotFound, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestDispatch_StoreUnavailable_Requeued(t *testing.T) {
	store := newMockStore()
	store.getErr = stderrors.New("dial tcp: connection refused")
	d := newDispatcher(store, channel.Registry{}, t)

	err := d.Dispatch(context.Background(), pendingNotification(models.TypeInApp, 0))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreUnavailable, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestDispatch_SentWriteFails_Requeued(t *testing.T) {
	n := pendingNotification(models.TypeInApp, 0)
	store := newMockStore(n)
	store.updateErr = stderrors.New("dial tcp: connection refused")
	d := newDispatcher(store, channel.Registry{models.TypeInApp: &mockAdapter{}}, t)

	err := d.Dispatch(context.Background(), n)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreUnavailable, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err), "unrecorded send requeues; terminal check dedupes later")
}
