package enums

// MovementType classifies a ledger movement.
type MovementType string

const (
	MovementTypeReceipt    MovementType = "receipt"
	MovementTypeTransfer   MovementType = "transfer"
	MovementTypeIssue      MovementType = "issue"
	MovementTypeRetire     MovementType = "retire"
	MovementTypeAdjustment MovementType = "adjustment"
)

var movementTypes = []MovementType{
	MovementTypeReceipt,
	MovementTypeTransfer,
	MovementTypeIssue,
	MovementTypeRetire,
	MovementTypeAdjustment,
}

func (m MovementType) String() string { return string(m) }

func (m MovementType) IsValid() bool { return known(m, movementTypes) }

// AllowsOverride reports whether m may take override-only status edges.
func (m MovementType) AllowsOverride() bool {
	return m == MovementTypeAdjustment
}

func ParseMovementType(value string) (MovementType, error) {
	return parse(value, "movement type", movementTypes)
}
