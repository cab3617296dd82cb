// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads. Anything it cannot decode is permanently undeliverable.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row the relay should dead-letter at once.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func route[T any](eventType enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  eventType.Aggregate(),
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry sends purchase-order lifecycle events to the purchasing
// topic and everything touching stock to the inventory topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	inventory := strings.TrimSpace(cfg.InventoryTopic)
	purchasing := strings.TrimSpace(cfg.PurchasingTopic)
	switch {
	case inventory == "":
		return nil, errors.New("inventory topic is required")
	case purchasing == "":
		return nil, errors.New("purchasing topic is required")
	}

	routes := []EventDescriptor{
		route[payloads.PurchaseOrderClosedEvent](enums.EventPurchaseOrderClosed, purchasing),
		route[payloads.PartArrivalPostedEvent](enums.EventPartArrivalPosted, inventory),
		route[payloads.InventoryAdjustedEvent](enums.EventInventoryAdjusted, inventory),
		route[payloads.InventoryStatusChangedEvent](enums.EventInventoryStatusChanged, inventory),
		route[payloads.InventoryMovementRecordedEvent](enums.EventInventoryMovementRecorded, inventory),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for _, desc := range routes {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics returns the distinct topic names, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{})
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Resolve checks the row against its route and decodes the payload. Every
// error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("no route for event type %q", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("%s rows must carry aggregate %s, got %s", event.EventType, desc.AggregateType, event.AggregateType)
	case strings.TrimSpace(event.AggregateID) == "":
		return nil, permanent("%s row has no aggregate id", event.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if env.EventType != "" && env.EventType != event.EventType {
		return nil, permanent("envelope says %s, row says %s", env.EventType, event.EventType)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("%s envelope has no data", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
