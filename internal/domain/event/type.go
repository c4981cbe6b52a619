package event

// Type identifies the type of domain event
type Type string

const (
	TypeVehicleCreated      Type = "vehicle.created"
	TypeVehicleStateChanged Type = "vehicle.state_changed"
	TypeVehicleDeleted      Type = "vehicle.deleted"
	TypeTransitionRejected  Type = "vehicle.transition_rejected"
	TypeCatalogChanged      Type = "catalog.changed"
)

// Payload keys used by lifecycle events
const (
	PayloadFromState = "from_state"
	PayloadToState   = "to_state"
	PayloadCommentID = "comment_id"
	PayloadVIN       = "vin"
	PayloadReason    = "reason"
	PayloadKind      = "kind"
	PayloadRef       = "ref"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeVehicleCreated,
		TypeVehicleStateChanged,
		TypeVehicleDeleted,
		TypeTransitionRejected,
		TypeCatalogChanged:
		return true
	default:
		return false
	}
}
