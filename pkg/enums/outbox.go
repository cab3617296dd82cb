package enums

// OutboxAggregateType is the entity whose id keys an outbox row.
type OutboxAggregateType string

const (
	AggregatePurchaseOrder     OutboxAggregateType = "purchase_order"
	AggregatePartArrival       OutboxAggregateType = "part_arrival"
	AggregateInventory         OutboxAggregateType = "inventory"
	AggregateInventoryMovement OutboxAggregateType = "inventory_movement"
)

var aggregateTypes = []OutboxAggregateType{
	AggregatePurchaseOrder,
	AggregatePartArrival,
	AggregateInventory,
	AggregateInventoryMovement,
}

func (a OutboxAggregateType) IsValid() bool { return known(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, "aggregate type", aggregateTypes)
}

// OutboxEventType names an integration event.
type OutboxEventType string

const (
	EventPurchaseOrderClosed       OutboxEventType = "purchase_order_closed"
	EventPartArrivalPosted         OutboxEventType = "part_arrival_posted"
	EventInventoryAdjusted         OutboxEventType = "inventory_adjusted"
	EventInventoryStatusChanged    OutboxEventType = "inventory_status_changed"
	EventInventoryMovementRecorded OutboxEventType = "inventory_movement_recorded"
)

// eventAggregates is the event catalog: every event type and its owner.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventPurchaseOrderClosed:       AggregatePurchaseOrder,
	EventPartArrivalPosted:         AggregatePartArrival,
	EventInventoryAdjusted:         AggregateInventory,
	EventInventoryStatusChanged:    AggregateInventory,
	EventInventoryMovementRecorded: AggregateInventoryMovement,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e is emitted for, or "" when e is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	e := OutboxEventType(value)
	if !e.IsValid() {
		return "", parseErr("event type", value)
	}
	return e, nil
}
