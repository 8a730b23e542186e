package prism

import "prism/core/types"

// Admin implements two-step admin transfer: the current admin proposes a
// successor, and the successor must accept before the role moves. A zero
// Proposed address means no transfer is pending.
type Admin struct {
	Current  types.Address
	Proposed types.Address
}

// NewAdmin seats the initial admin.
func NewAdmin(initial types.Address) Admin {
	return Admin{Current: initial}
}

// EnsureAdmin rejects any caller other than the seated admin.
func (a *Admin) EnsureAdmin(caller types.Address) error {
	if caller != a.Current {
		return ErrUnauthorizedAdmin
	}
	return nil
}

// Propose records next as the pending admin. Only the seated admin may
// propose, and neither the zero address nor the seated admin is accepted.
func (a *Admin) Propose(caller, next types.Address) error {
	if err := a.EnsureAdmin(caller); err != nil {
		return err
	}
	if next.IsZero() || next == a.Current {
		return ErrInvalidAddress
	}
	a.Proposed = next
	return nil
}

// Accept seats the pending admin. Only the proposed identity may accept.
func (a *Admin) Accept(caller types.Address) error {
	if a.Proposed.IsZero() {
		return ErrNoProposedAdmin
	}
	if caller != a.Proposed {
		return ErrUnauthorizedAdmin
	}
	a.Current = a.Proposed
	a.Proposed = types.ZeroAddress
	return nil
}

// Cancel withdraws a pending proposal.
func (a *Admin) Cancel(caller types.Address) error {
	if err := a.EnsureAdmin(caller); err != nil {
		return err
	}
	if a.Proposed.IsZero() {
		return ErrNoProposedAdmin
	}
	a.Proposed = types.ZeroAddress
	return nil
}
