package enums

// PurchaseOrderStatus is the lifecycle state of a purchase order header.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusOpen            PurchaseOrderStatus = "open"
	PurchaseOrderStatusPartiallyClosed PurchaseOrderStatus = "partially_closed"
	PurchaseOrderStatusClosed          PurchaseOrderStatus = "closed"
)

var purchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusOpen,
	PurchaseOrderStatusPartiallyClosed,
	PurchaseOrderStatusClosed,
}

func (s PurchaseOrderStatus) String() string { return string(s) }

func (s PurchaseOrderStatus) IsValid() bool { return known(s, purchaseOrderStatuses) }

// AcceptsArrivals reports whether lines under the header may still be received.
func (s PurchaseOrderStatus) AcceptsArrivals() bool {
	return s != PurchaseOrderStatusClosed && s.IsValid()
}

func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	return parse(value, "purchase order status", purchaseOrderStatuses)
}
