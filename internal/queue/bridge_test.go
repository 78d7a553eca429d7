package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-service/internal/common/errors"
	"notification-service/internal/common/logger"
	"notification-service/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, _ bool) error {
	return nil
}

func testDelivery(t *testing.T, ack amqp.Acknowledger) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(models.Notification{
		ID:     uuid.New(),
		UserID: "user-1",
		Type:   models.TypeInApp,
		Status: models.StatusPending,
	})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

// Messages carry the full record; the consumer must get back exactly what
// the publisher serialized.
func TestMessageRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := models.Notification{
		ID:         uuid.New(),
		UserID:     "user-1",
		Type:       models.TypeEmail,
		Title:      "Welcome",
		Message:    "Hello there",
		To:         "user@example.com",
		Subject:    "Welcome aboard",
		Metadata:   json.RawMessage(`{"campaign":"onboarding"}`),
		Status:     models.StatusPending,
		RetryCount: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	body, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded models.Notification
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.To, decoded.To)
	assert.Equal(t, original.Status, decoded.Status)
	assert.JSONEq(t, string(original.Metadata), string(decoded.Metadata))
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
}

func TestMessageDecode_UnknownFieldsIgnored(t *testing.T) {
	id := uuid.New()
	body := []byte(`{"id":"` + id.String() + `","userId":"user-1","type":"IN_APP","title":"t","message":"m","status":"PENDING","retryCount":1,"futureField":{"nested":true}}`)

	var decoded models.Notification
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, id, decoded.ID)
	assert.Equal(t, 1, decoded.RetryCount)
}

// Once a delivery is picked up, beginning shutdown must not cancel the
// adapter call mid-send: a healthy delivery would otherwise be recorded as
// a failed attempt and waste a retry.
func TestProcess_ShutdownDoesNotCancelInFlightDelivery(t *testing.T) {
	b := &Bridge{logger: logger.NewNoOpLogger()}
	ack := &fakeAcknowledger{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handlerCtxErr := stderrors.New("handler never called")
	b.process(ctx, b.logger, testDelivery(t, ack), func(hctx context.Context, _ *models.Notification) error {
		handlerCtxErr = hctx.Err()
		return nil
	})

	assert.NoError(t, handlerCtxErr, "handler context must outlive the consumer's")
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestProcess_AcknowledgmentFollowsClassification(t *testing.T) {
	tests := []struct {
		name       string
		handlerErr error
		wantAcks   int
		wantNacks  int
	}{
		{"success acked", nil, 1, 0},
		{"transient failure requeued", errors.NewChannelUnconfiguredError("email"), 0, 1},
		{"permanent failure acked", errors.NewUnsupportedTypeError("PIGEON"), 1, 0},
		{"exhausted retries acked", errors.NewRetriesExhaustedError(3, stderrors.New("still down")), 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &Bridge{logger: logger.NewNoOpLogger()}
			ack := &fakeAcknowledger{}

			b.process(context.Background(), b.logger, testDelivery(t, ack), func(context.Context, *models.Notification) error {
				return tc.handlerErr
			})

			assert.Equal(t, tc.wantAcks, ack.acks)
			assert.Equal(t, tc.wantNacks, ack.nacks)
			if tc.wantNacks > 0 {
				assert.True(t, ack.requeue)
			}
		})
	}
}

func TestProcess_MalformedMessageDropped(t *testing.T) {
	b := &Bridge{logger: logger.NewNoOpLogger()}
	ack := &fakeAcknowledger{}

	called := false
	b.process(context.Background(), b.logger, amqp.Delivery{Acknowledger: ack, Body: []byte(`{not json`)}, func(context.Context, *models.Notification) error {
		called = true
		return nil
	})

	assert.False(t, called, "a payload that cannot decode never reaches dispatch")
	assert.Equal(t, 1, ack.acks, "poison messages are removed, not redelivered")
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		requeue bool
	}{
		{"transient delivery failure", errors.NewEmailDeliveryError(stderrors.New("connection refused")), true},
		{"unconfigured channel", errors.NewChannelUnconfiguredError("email"), true},
		{"store unavailable", errors.NewStoreUnavailableError(stderrors.New("dial tcp")), true},
		{"retries exhausted", errors.NewRetriesExhaustedError(3, stderrors.New("still down")), false},
		{"unsupported type", errors.NewUnsupportedTypeError("PIGEON"), false},
		{"record missing", errors.NewNotFoundError(uuid.NewString()), false},
		{"unclassified error", stderrors.New("something unexpected"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.requeue, shouldRequeue(tc.err))
		})
	}
}
