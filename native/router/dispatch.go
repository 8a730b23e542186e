package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
)

// Wire methods of the router. Exported so external surfaces can build
// submissions without duplicating selector derivation.
var (
	MethodExecute              = prism.SelectorOf("execute")
	MethodRegisterLogic        = prism.SelectorOf("register_logic")
	MethodPause                = prism.SelectorOf("pause")
	MethodUnpause              = prism.SelectorOf("unpause")
	MethodEmergencySwitchLogic = prism.SelectorOf("emergency_switch_logic")
	MethodActivateRoute        = prism.SelectorOf("activate_route")
	MethodDeactivateRoute      = prism.SelectorOf("deactivate_route")
	MethodTransferAdmin        = prism.SelectorOf("transfer_admin")
	MethodAcceptAdmin          = prism.SelectorOf("accept_admin")
	MethodIsPaused             = prism.SelectorOf("is_paused")
	MethodGetNonce             = prism.SelectorOf("get_nonce")
	MethodGetRoute             = prism.SelectorOf("get_route")
	MethodGetAdmin             = prism.SelectorOf("get_admin")
)

// ExecuteArgs carries one opaque operation.
type ExecuteArgs struct {
	Op Operation
}

// RegisterLogicArgs configures the registration handshake for a logic actor.
type RegisterLogicArgs struct {
	Logic         types.Address
	MaxContextAge uint64
	RestrictedTo  types.Address
	Extensions    []prism.ExtensionEntry
}

// PauseArgs names the reason a pause is recorded under.
type PauseArgs struct {
	Reason string
}

// SwitchArgs names the role being switched and its backup logic.
type SwitchArgs struct {
	Role   string
	Backup types.Address
}

// RoleArgs names a single role.
type RoleArgs struct {
	Role string
}

// AddressArgs carries a single identity.
type AddressArgs struct {
	Addr types.Address
}

// Dispatch implements host.Actor.
func (r *Router) Dispatch(env host.Env, method prism.MethodID, args []byte) ([]byte, error) {
	switch method {
	case MethodExecute:
		var in ExecuteArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return r.execute(env, in.Op)
	case MethodRegisterLogic:
		var in RegisterLogicArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, r.registerLogic(env, in.Logic, in.MaxContextAge, in.RestrictedTo, in.Extensions)
	case MethodPause:
		var in PauseArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		reason, err := prism.ParsePauseReason(in.Reason)
		if err != nil {
			return nil, err
		}
		return nil, r.pause(env, reason)
	case MethodUnpause:
		return nil, r.unpause(env)
	case MethodEmergencySwitchLogic:
		var in SwitchArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, r.emergencySwitchLogic(env, in.Role, in.Backup)
	case MethodActivateRoute:
		var in RoleArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, r.setRouteActive(env, in.Role, true)
	case MethodDeactivateRoute:
		var in RoleArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, r.setRouteActive(env, in.Role, false)
	case MethodTransferAdmin:
		var in AddressArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, r.transferAdmin(env, in.Addr)
	case MethodAcceptAdmin:
		return nil, r.acceptAdmin(env)
	case MethodIsPaused:
		pausable, err := r.loadPausable()
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(pausable.Paused)
	case MethodGetNonce:
		nonce, err := r.Nonce()
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(nonce)
	case MethodGetRoute:
		var in RoleArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		route, err := r.loadRoute(in.Role)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(route)
	case MethodGetAdmin:
		var admin prism.Admin
		if _, err := r.st.GetRLP(r.key(keyAdmin), &admin); err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(admin.Current)
	default:
		return nil, fmt.Errorf("%w: unknown router method %s", prism.ErrTransportFailure, method)
	}
}

func decodeArgs(args []byte, out any) error {
	if err := rlp.DecodeBytes(args, out); err != nil {
		return fmt.Errorf("%w: decode args: %v", prism.ErrTransportFailure, err)
	}
	return nil
}
