package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/events"
	"prism/core/host"
	"prism/core/state"
	"prism/core/types"
	"prism/native/prism"
	"prism/native/rewards"
)

// State keys under the router's prefix.
const (
	keyAdmin       = "admin"
	keyPaused      = "paused"
	keyNonce       = "nonce"
	keyStorageCore = "storage_core"
	routePrefix    = "route/"
)

// Route is one role registration. RestrictedTo, when set, limits the
// operation to a single privileged caller; the zero address leaves it open.
type Route struct {
	Logic         types.Address
	Active        bool
	MaxContextAge uint64
	RestrictedTo  types.Address
}

// Operation is the opaque payload an external caller hands to Execute. The
// router resolves the role, names the method, and forwards the params; it
// never inspects their semantics.
type Operation struct {
	Role   string
	Method string
	Args   []byte
}

// Router is the sole externally reachable actor: it mints capability
// contexts, dispatches operations to registered logic, and owns the
// pause/emergency controls and the audit event.
type Router struct {
	addr    types.Address
	st      *state.Manager
	guard   prism.Guard
	emitter events.Emitter
}

// NewRouter wires a router at addr. The admin is seated and the storage
// core recorded on first boot; restarts keep the persisted values.
func NewRouter(addr types.Address, st *state.Manager, admin, storageCore types.Address, emitter events.Emitter) (*Router, error) {
	if addr.IsZero() || storageCore.IsZero() {
		return nil, prism.ErrInvalidAddress
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r := &Router{addr: addr, st: st, emitter: emitter}
	var seated prism.Admin
	ok, err := st.GetRLP(r.key(keyAdmin), &seated)
	if err != nil {
		return nil, err
	}
	if !ok {
		if admin.IsZero() {
			return nil, prism.ErrInvalidAddress
		}
		if err := st.PutRLP(r.key(keyAdmin), prism.NewAdmin(admin)); err != nil {
			return nil, err
		}
		if err := st.PutRLP(r.key(keyStorageCore), storageCore); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) Address() types.Address { return r.addr }

func (r *Router) key(name string) []byte {
	return []byte("router/" + r.addr.Hex() + "/" + name)
}

func (r *Router) routeKey(role string) []byte {
	return r.key(routePrefix + role)
}

// --- state helpers ---

func (r *Router) ensureAdmin(env host.Env) (*prism.Admin, error) {
	var admin prism.Admin
	if _, err := r.st.GetRLP(r.key(keyAdmin), &admin); err != nil {
		return nil, err
	}
	if err := admin.EnsureAdmin(env.Caller()); err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *Router) loadPausable() (*prism.Pausable, error) {
	var p prism.Pausable
	if _, err := r.st.GetRLP(r.key(keyPaused), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Router) loadRoute(role string) (*Route, error) {
	var route Route
	ok, err := r.st.GetRLP(r.routeKey(role), &route)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", prism.ErrRouteNotFound, role)
	}
	return &route, nil
}

func (r *Router) storageCore() (types.Address, error) {
	var core types.Address
	if _, err := r.st.GetRLP(r.key(keyStorageCore), &core); err != nil {
		return types.ZeroAddress, err
	}
	return core, nil
}

// nextNonce advances and persists the strictly increasing mint counter.
func (r *Router) nextNonce() (uint64, error) {
	var nonce uint64
	if _, err := r.st.GetRLP(r.key(keyNonce), &nonce); err != nil {
		return 0, err
	}
	nonce++
	if err := r.st.PutRLP(r.key(keyNonce), nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Nonce reads the current mint counter without advancing it.
func (r *Router) Nonce() (uint64, error) {
	var nonce uint64
	if _, err := r.st.GetRLP(r.key(keyNonce), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// --- operations ---

// execute is the single dispatch path for external operations. While the
// router is paused it fails fast before minting a context or touching the
// nonce counter. One audit event is emitted per minted context, success or
// failure.
func (r *Router) execute(env host.Env, op Operation) ([]byte, error) {
	pausable, err := r.loadPausable()
	if err != nil {
		return nil, err
	}
	if err := pausable.EnsureNotPaused(); err != nil {
		return nil, err
	}

	var reply []byte
	err = r.guard.Do(func() error {
		route, err := r.loadRoute(op.Role)
		if err != nil {
			return err
		}
		if !route.Active {
			return fmt.Errorf("%w: %s", prism.ErrInactiveRoute, op.Role)
		}
		if !route.RestrictedTo.IsZero() && env.Caller() != route.RestrictedTo {
			return &prism.OnlyCallableByError{Expected: route.RestrictedTo}
		}

		nonce, err := r.nextNonce()
		if err != nil {
			return err
		}
		ctx := prism.MintContext(env.Caller(), r.addr, env.Now(), nonce)
		payload, err := prism.WrapEnvelope(ctx, op.Args)
		if err != nil {
			return fmt.Errorf("%w: wrap operation: %v", prism.ErrTransportFailure, err)
		}

		out, callErr := env.CallWithValue(route.Logic, prism.SelectorOf(op.Method), payload, env.TransferredValue())

		audit := events.OperationExecuted{
			Nonce:     nonce,
			Origin:    ctx.Origin,
			Role:      op.Role,
			Method:    op.Method,
			OK:        callErr == nil,
			Timestamp: ctx.IssuedAt,
		}
		if callErr != nil {
			audit.Result = callErr.Error()
		} else {
			audit.Result = "ok"
		}
		r.emitter.Emit(audit)

		if callErr != nil {
			return callErr
		}
		reply = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// registerLogic runs the two-step registration handshake: query the logic's
// capabilities, record a route per declared role, authorize the logic in the
// storage core, and hand the logic its storage and extension bindings.
func (r *Router) registerLogic(env host.Env, logic types.Address, maxAge uint64, restrictedTo types.Address, extensions []prism.ExtensionEntry) error {
	if _, err := r.ensureAdmin(env); err != nil {
		return err
	}
	if logic.IsZero() {
		return prism.ErrInvalidAddress
	}
	if maxAge == 0 {
		maxAge = prism.DefaultMaxContextAge
	}

	reply, err := env.Call(logic, prism.MethodGetCapabilities, nil)
	if err != nil {
		return fmt.Errorf("router: query capabilities: %w", err)
	}
	var capability prism.Capability
	if err := rlp.DecodeBytes(reply, &capability); err != nil {
		return fmt.Errorf("%w: decode capabilities: %v", prism.ErrTransportFailure, err)
	}
	if len(capability.Roles) == 0 {
		return fmt.Errorf("%w: logic declares no roles", prism.ErrInvalidAddress)
	}

	for _, role := range capability.Roles {
		route := Route{Logic: logic, Active: true, MaxContextAge: maxAge, RestrictedTo: restrictedTo}
		if err := r.st.PutRLP(r.routeKey(role), &route); err != nil {
			return err
		}
	}

	core, err := r.storageCore()
	if err != nil {
		return err
	}
	store := rewards.Client{Store: core}
	if err := store.AuthorizeLogic(env, logic); err != nil {
		return fmt.Errorf("router: authorize logic in storage: %w", err)
	}

	initArgs, err := rlp.EncodeToBytes(prism.InitializeStorageArgs{Core: core, Extensions: extensions})
	if err != nil {
		return err
	}
	if _, err := env.Call(logic, prism.MethodInitializeStorage, initArgs); err != nil {
		return fmt.Errorf("router: initialize logic storage: %w", err)
	}

	r.emitter.Emit(events.LogicRegistered{
		Logic:   logic,
		Version: capability.Version,
		Roles:   capability.Roles,
	})
	return nil
}

func (r *Router) pause(env host.Env, reason prism.PauseReason) error {
	if _, err := r.ensureAdmin(env); err != nil {
		return err
	}
	pausable, err := r.loadPausable()
	if err != nil {
		return err
	}
	if err := pausable.Pause(reason); err != nil {
		return err
	}
	if err := r.st.PutRLP(r.key(keyPaused), pausable); err != nil {
		return err
	}
	r.emitter.Emit(events.RouterPaused{Reason: reason.String()})
	return nil
}

func (r *Router) unpause(env host.Env) error {
	if _, err := r.ensureAdmin(env); err != nil {
		return err
	}
	pausable, err := r.loadPausable()
	if err != nil {
		return err
	}
	if err := pausable.Unpause(); err != nil {
		return err
	}
	if err := r.st.PutRLP(r.key(keyPaused), pausable); err != nil {
		return err
	}
	r.emitter.Emit(events.RouterUnpaused{})
	return nil
}

// emergencySwitchLogic atomically replaces a role's registration with a
// backup. It is rejected unless the router is paused, so live logic is
// never swapped mid-flight.
func (r *Router) emergencySwitchLogic(env host.Env, role string, backup types.Address) error {
	if _, err := r.ensureAdmin(env); err != nil {
		return err
	}
	pausable, err := r.loadPausable()
	if err != nil {
		return err
	}
	if err := pausable.EnsurePaused(); err != nil {
		return err
	}
	if backup.IsZero() {
		return prism.ErrInvalidAddress
	}
	route, err := r.loadRoute(role)
	if err != nil {
		return err
	}
	old := route.Logic
	route.Logic = backup
	if err := r.st.PutRLP(r.routeKey(role), route); err != nil {
		return err
	}
	r.emitter.Emit(events.EmergencyLogicSwitch{Role: role, OldLogic: old, NewLogic: backup})
	return nil
}

func (r *Router) setRouteActive(env host.Env, role string, active bool) error {
	if _, err := r.ensureAdmin(env); err != nil {
		return err
	}
	route, err := r.loadRoute(role)
	if err != nil {
		return err
	}
	route.Active = active
	return r.st.PutRLP(r.routeKey(role), route)
}

func (r *Router) transferAdmin(env host.Env, next types.Address) error {
	admin, err := r.ensureAdmin(env)
	if err != nil {
		return err
	}
	if err := admin.Propose(env.Caller(), next); err != nil {
		return err
	}
	return r.st.PutRLP(r.key(keyAdmin), admin)
}

func (r *Router) acceptAdmin(env host.Env) error {
	var admin prism.Admin
	if _, err := r.st.GetRLP(r.key(keyAdmin), &admin); err != nil {
		return err
	}
	if err := admin.Accept(env.Caller()); err != nil {
		return err
	}
	return r.st.PutRLP(r.key(keyAdmin), &admin)
}
