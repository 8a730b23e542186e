package events

import "prism/core/types"

const (
	// TypeOperationExecuted is the single audit record emitted per top-level
	// call through the router, success or failure.
	TypeOperationExecuted = "prism.operation.executed"
	// TypeLogicRegistered is emitted when a logic actor is registered and
	// authorized for its roles.
	TypeLogicRegistered = "prism.router.logic_registered"
	// TypeEmergencyLogicSwitch is emitted when a paused router swaps a
	// role's logic registration for a backup.
	TypeEmergencyLogicSwitch = "prism.router.emergency_switch"
	// TypeRouterPaused is emitted when the router is paused.
	TypeRouterPaused = "prism.router.paused"
	// TypeRouterUnpaused is emitted when the router resumes.
	TypeRouterUnpaused = "prism.router.unpaused"
)

// OperationExecuted records the outcome of one external entry: the context
// nonce and origin, the dispatched operation, and the result summary.
type OperationExecuted struct {
	Nonce     uint64
	Origin    types.Address
	Role      string
	Method    string
	OK        bool
	Result    string
	Timestamp uint64
}

func (OperationExecuted) EventType() string { return TypeOperationExecuted }

// LogicRegistered captures a completed register-then-authorize handshake.
type LogicRegistered struct {
	Logic   types.Address
	Version uint64
	Roles   []string
}

func (LogicRegistered) EventType() string { return TypeLogicRegistered }

// EmergencyLogicSwitch records an emergency replacement of a role's logic.
type EmergencyLogicSwitch struct {
	Role     string
	OldLogic types.Address
	NewLogic types.Address
}

func (EmergencyLogicSwitch) EventType() string { return TypeEmergencyLogicSwitch }

// RouterPaused records a pause with its reason.
type RouterPaused struct {
	Reason string
}

func (RouterPaused) EventType() string { return TypeRouterPaused }

// RouterUnpaused records a resume.
type RouterUnpaused struct{}

func (RouterUnpaused) EventType() string { return TypeRouterUnpaused }
