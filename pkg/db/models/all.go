package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Status{},
		&PurchaseOrderHeader{},
		&PurchaseOrderLine{},
		&PartDemandPurchaseOrderLine{},
		&PackageHeader{},
		&PartArrival{},
		&ActiveInventory{},
		&InventoryMovement{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
