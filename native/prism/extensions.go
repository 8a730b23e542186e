package prism

import (
	"fmt"
	"strings"

	"prism/core/types"
)

// ExtensionEntry binds an extension name to the storage actor implementing it.
type ExtensionEntry struct {
	Name string
	Addr types.Address
}

// ExtensionRegistry is the keyed table of optional pluggable sub-modules.
// Entries are never silently overwritten: changing an extension requires an
// explicit revoke-then-register step.
type ExtensionRegistry struct {
	Entries []ExtensionEntry
}

// Register binds name to addr, failing if the key is already present.
func (r *ExtensionRegistry) Register(name string, addr types.Address) error {
	name = strings.TrimSpace(name)
	if name == "" || addr.IsZero() {
		return ErrInvalidAddress
	}
	if _, ok := r.Resolve(name); ok {
		return fmt.Errorf("%w: %s", ErrExtensionExists, name)
	}
	r.Entries = append(r.Entries, ExtensionEntry{Name: name, Addr: addr})
	return nil
}

// Revoke removes the binding for name.
func (r *ExtensionRegistry) Revoke(name string) error {
	for i, e := range r.Entries {
		if e.Name == name {
			r.Entries = append(r.Entries[:i], r.Entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrExtensionNotFound, name)
}

// Resolve looks up the actor registered under name.
func (r *ExtensionRegistry) Resolve(name string) (types.Address, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Addr, true
		}
	}
	return types.ZeroAddress, false
}

// All returns a copy of the registered entries in registration order.
func (r *ExtensionRegistry) All() []ExtensionEntry {
	out := make([]ExtensionEntry, len(r.Entries))
	copy(out, r.Entries)
	return out
}
