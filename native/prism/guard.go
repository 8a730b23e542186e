package prism

// Guard is a per-actor exclusive-execution flag. It protects against nested
// synchronous re-entry within one call chain: a logic module calling into
// storage which, via an extension, calls back into the same logic module.
//
// The guard is not persisted. It exists only for the duration of one call
// chain, and Do guarantees release on every exit path.
type Guard struct {
	active bool
}

// Active reports whether the guard is currently held.
func (g *Guard) Active() bool {
	return g.active
}

// Do runs fn under the guard. A nested attempt while the guard is held fails
// with ErrReentrancyDetected and leaves the guard untouched. Release happens
// on normal return, error return, and panic alike; a guard that stays held
// would permanently disable the actor, so release is structural rather than
// left to the callee.
func (g *Guard) Do(fn func() error) error {
	if g.active {
		return ErrReentrancyDetected
	}
	g.active = true
	defer func() {
		g.active = false
	}()
	return fn()
}

// ForceReset clears a held guard. Admin escape hatch only; normal operation
// never needs it.
func (g *Guard) ForceReset() {
	g.active = false
}
