package prism

import "fmt"

// PauseReason records why an actor was paused.
type PauseReason uint8

const (
	PauseReasonNone PauseReason = iota
	PauseReasonSecurityIncident
	PauseReasonMaintenance
	PauseReasonUpgrade
	PauseReasonEmergency
)

func (r PauseReason) String() string {
	switch r {
	case PauseReasonSecurityIncident:
		return "security_incident"
	case PauseReasonMaintenance:
		return "maintenance"
	case PauseReasonUpgrade:
		return "upgrade"
	case PauseReasonEmergency:
		return "emergency"
	default:
		return "none"
	}
}

// ParsePauseReason resolves a reason label. Unknown labels are rejected so a
// typo in an operator command never pauses with the wrong reason on record.
func ParsePauseReason(s string) (PauseReason, error) {
	switch s {
	case "security_incident":
		return PauseReasonSecurityIncident, nil
	case "maintenance":
		return PauseReasonMaintenance, nil
	case "upgrade":
		return PauseReasonUpgrade, nil
	case "emergency":
		return PauseReasonEmergency, nil
	default:
		return PauseReasonNone, fmt.Errorf("%w: %q", ErrUnknownPauseReason, s)
	}
}

// Pausable gates an actor's externally reachable operations.
type Pausable struct {
	Paused bool
	Reason PauseReason
}

// Pause halts the actor. Pausing an already paused actor is an error so an
// operator can tell their view of the state was stale.
func (p *Pausable) Pause(reason PauseReason) error {
	if p.Paused {
		return ErrAlreadyPaused
	}
	p.Paused = true
	p.Reason = reason
	return nil
}

// Unpause resumes the actor.
func (p *Pausable) Unpause() error {
	if !p.Paused {
		return ErrNotPaused
	}
	p.Paused = false
	p.Reason = PauseReasonNone
	return nil
}

// EnsureNotPaused fails fast while the actor is paused.
func (p *Pausable) EnsureNotPaused() error {
	if p.Paused {
		return fmt.Errorf("%w: %s", ErrPaused, p.Reason)
	}
	return nil
}

// EnsurePaused fails unless the actor is paused. Emergency maintenance
// operations require it so live logic is never swapped mid-flight.
func (p *Pausable) EnsurePaused() error {
	if !p.Paused {
		return ErrNotPaused
	}
	return nil
}
