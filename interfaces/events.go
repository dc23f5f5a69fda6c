package interfaces

import "context"

// EventKind names a committed operation.
type EventKind string

const (
	EventRolesSet             EventKind = "RolesSet"
	EventBondSet              EventKind = "BondSet"
	EventBondMinted           EventKind = "BondMinted"
	EventBondIssued           EventKind = "BondIssued"
	EventBondActivated        EventKind = "BondActivated"
	EventBondEnded            EventKind = "BondEnded"
	EventBondFunded           EventKind = "BondFunded"
	EventFundsWithdrawn       EventKind = "FundsWithdrawn"
	EventPayoutReleased       EventKind = "PayoutReleased"
	EventDeviceRegistered     EventKind = "DeviceRegistered"
	EventImpactReported       EventKind = "ImpactReported"
	EventImpactVerified       EventKind = "ImpactVerified"
	EventBondFrozen           EventKind = "BondFrozen"
	EventBondUnfrozen         EventKind = "BondUnfrozen"
	EventOwnershipTransferred EventKind = "OwnershipTransferred"
)

// Event records one committed state transition.
type Event struct {
	// Seq is the contract state sequence number after the transition.
	Seq uint64 `json:"seq"`

	Kind      EventKind      `json:"kind"`
	Principal Principal      `json:"principal"`
	Time      uint64         `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventSink receives the events of committed operations in commit order.
type EventSink interface {
	// Publish hands an event over for delivery. It must not block on remote I/O;
	// delivery failures never roll back the committed operation.
	Publish(ctx context.Context, event Event) error
}
