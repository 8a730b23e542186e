package prism

import "prism/core/types"

// AuthRegistry is the per-actor set of identities permitted to invoke that
// actor's mutating operations. It starts empty: an unauthorized caller is
// always rejected, never silently ignored.
//
// The registry is a plain value so the owning actor can persist it as part
// of its durable state and reload it on every call.
type AuthRegistry struct {
	Addresses []types.Address
}

// IsAuthorized reports whether addr may invoke mutating operations.
func (r *AuthRegistry) IsAuthorized(addr types.Address) bool {
	for _, a := range r.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}

// Authorize admits addr. Re-authorizing an admitted identity is a no-op.
func (r *AuthRegistry) Authorize(addr types.Address) error {
	if addr.IsZero() {
		return ErrInvalidAddress
	}
	if r.IsAuthorized(addr) {
		return nil
	}
	r.Addresses = append(r.Addresses, addr)
	return nil
}

// Revoke removes addr. Revoking an absent identity is a no-op.
func (r *AuthRegistry) Revoke(addr types.Address) {
	kept := r.Addresses[:0]
	for _, a := range r.Addresses {
		if a != addr {
			kept = append(kept, a)
		}
	}
	r.Addresses = kept
}
