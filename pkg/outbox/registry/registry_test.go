package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		InventoryTopic:  "inventory-topic",
		PurchasingTopic: "purchasing-topic",
	})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, eventType enums.OutboxEventType, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return body
}

func TestResolveMovementRecorded(t *testing.T) {
	reg := testRegistry(t)
	movementID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventInventoryMovementRecorded,
		AggregateType: enums.AggregateInventoryMovement,
		AggregateID:   movementID.String(),
		Payload: envelope(t, enums.EventInventoryMovementRecorded, payloads.InventoryMovementRecordedEvent{
			MovementID:   movementID,
			PartID:       "PUMP-100",
			FromLocation: "A",
			ToLocation:   "B",
			Qty:          4,
			MovementType: enums.MovementTypeTransfer,
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "inventory-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.InventoryMovementRecordedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, movementID, payload.MovementID)
	assert.Equal(t, 4, payload.Qty)
	assert.NotEmpty(t, resolved.Envelope.EventID)
}

func TestResolveRoutesPurchaseOrdersSeparately(t *testing.T) {
	reg := testRegistry(t)
	headerID := uuid.New()
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPurchaseOrderClosed,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   headerID.String(),
		Payload: envelope(t, "", payloads.PurchaseOrderClosedEvent{
			HeaderID: headerID,
			Status:   enums.PurchaseOrderStatusClosed,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "purchasing-topic", resolved.Descriptor.Topic)
	assert.Equal(t, []string{"inventory-topic", "purchasing-topic"}, reg.Topics())
}

func TestResolveRejectsPermanently(t *testing.T) {
	reg := testRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "order_created",
			AggregateType: enums.AggregateInventory,
			AggregateID:   "P1",
			Payload:       envelope(t, "", map[string]any{}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventPartArrivalPosted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   uuid.NewString(),
			Payload:       envelope(t, "", map[string]any{}),
		},
		"missing aggregate id": {
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			Payload:       envelope(t, "", map[string]any{}),
		},
		"null data": {
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   "P1",
			Payload:       envelope(t, "", nil),
		},
		"envelope type disagrees": {
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   "P1",
			Payload:       envelope(t, enums.EventInventoryStatusChanged, map[string]any{}),
		},
		"not json": {
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   "P1",
			Payload:       json.RawMessage(`not-json`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "got %v", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{PurchasingTopic: "p"})
	assert.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{InventoryTopic: "i"})
	assert.Error(t, err)
}
