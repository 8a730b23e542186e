package prism

import (
	"fmt"

	"prism/core/types"
)

// DefaultMaxContextAge is the freshness window, in logical clock units,
// applied to a capability context unless a route configures its own.
const DefaultMaxContextAge uint64 = 300_000

// Context is the capability token minted once per external entry. It proves
// who initiated a call, through which router, and how fresh it is. A context
// is never re-minted downstream; every actor on the path re-validates it.
type Context struct {
	// Origin is the identity of the original external caller.
	Origin types.Address
	// Router is the identity of the router that minted the context.
	Router types.Address
	// IssuedAt is the logical clock value at mint time.
	IssuedAt uint64
	// Nonce is the router's strictly increasing mint counter.
	Nonce uint64
	// Path records the actors visited, in order, for audit.
	Path []types.Address
}

// MintContext constructs a fresh context. The caller is responsible for
// having advanced the nonce counter before minting.
func MintContext(origin, router types.Address, now, nonce uint64) Context {
	return Context{
		Origin:   origin,
		Router:   router,
		IssuedAt: now,
		Nonce:    nonce,
		Path:     []types.Address{router},
	}
}

// WithHop returns a copy of the context with actor appended to the audit
// path. The receiver is left untouched; contexts are immutable once minted.
func (c Context) WithHop(actor types.Address) Context {
	path := make([]types.Address, 0, len(c.Path)+1)
	path = append(path, c.Path...)
	path = append(path, actor)
	c.Path = path
	return c
}

// Validate checks the context against the validating actor's trust set and
// freshness window. Every logic module runs this independently; no module
// trusts a prior module's validation.
func (c Context) Validate(now, maxAge uint64, routers []types.Address) error {
	trusted := false
	for _, r := range routers {
		if r == c.Router {
			trusted = true
			break
		}
	}
	if !trusted {
		return fmt.Errorf("%w: %s", ErrUnauthorizedRouter, c.Router.Hex())
	}
	if now > c.IssuedAt && now-c.IssuedAt > maxAge {
		return fmt.Errorf("%w: issued at %d, validated at %d", ErrContextExpired, c.IssuedAt, now)
	}
	return nil
}
