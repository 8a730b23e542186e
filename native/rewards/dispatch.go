package rewards

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/native/prism"
)

// Wire methods of the storage core. Selectors are derived from the method
// names, so independently compiled callers agree on the identifiers.
var (
	methodAuthorizeLogic         = prism.SelectorOf("authorize_logic")
	methodRevokeLogic            = prism.SelectorOf("revoke_logic")
	methodTransferAdmin          = prism.SelectorOf("transfer_admin")
	methodAcceptAdmin            = prism.SelectorOf("accept_admin")
	methodRegisterExtension      = prism.SelectorOf("register_extension")
	methodRevokeExtension        = prism.SelectorOf("revoke_extension")
	methodResolveExtension       = prism.SelectorOf("resolve_extension")
	methodGetTotalMerchantVolume = prism.SelectorOf("get_total_merchant_volume")
	methodGetTotalRewardPool     = prism.SelectorOf("get_total_reward_pool")
	methodGetTotalVolume         = prism.SelectorOf("get_total_volume")
	methodGetSessionVolume       = prism.SelectorOf("get_session_volume")
	methodGetLastSession         = prism.SelectorOf("get_last_session")
	methodGetHighestPrice        = prism.SelectorOf("get_highest_price")
	methodGetAdmin               = prism.SelectorOf("get_admin")
	methodAddMerchantVolume      = prism.SelectorOf("add_merchant_volume")
	methodUpdateRewardPool       = prism.SelectorOf("update_reward_pool")
	methodSubtractFromRewardPool = prism.SelectorOf("subtract_from_reward_pool")
	methodSetSessionVolume       = prism.SelectorOf("set_session_volume")
	methodSetLastSession         = prism.SelectorOf("set_last_session")
	methodSetHighestPrice        = prism.SelectorOf("set_highest_price")
)

// Dispatch implements host.Actor.
func (s *Store) Dispatch(env host.Env, method prism.MethodID, args []byte) ([]byte, error) {
	switch method {
	case methodAuthorizeLogic:
		var in addressArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.authorizeLogic(env, in.Addr)
	case methodRevokeLogic:
		var in addressArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.revokeLogic(env, in.Addr)
	case methodTransferAdmin:
		var in addressArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.transferAdmin(env, in.Addr)
	case methodAcceptAdmin:
		return nil, s.acceptAdmin(env)
	case methodRegisterExtension:
		var in extensionArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.registerExtension(env, in.Name, in.Addr)
	case methodRevokeExtension:
		var in nameArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.revokeExtension(env, in.Name)
	case methodResolveExtension:
		var in nameArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		addr, err := s.resolveExtension(in.Name)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(addr)
	case methodGetTotalMerchantVolume:
		value, err := s.totalMerchantVolume(env)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(value)
	case methodGetTotalRewardPool:
		value, err := s.totalRewardPool(env)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(value)
	case methodGetTotalVolume:
		value, err := s.totalVolume(env)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(value)
	case methodGetSessionVolume:
		var in sessionArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		value, err := s.bigInt(s.sessionKey(in.Session))
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(value)
	case methodGetLastSession:
		value, err := s.uint64At(s.key(keyLastSession))
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(value)
	case methodGetHighestPrice:
		value, err := s.bigInt(s.key(keyHighestPrice))
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(value)
	case methodGetAdmin:
		var admin prism.Admin
		if _, err := s.st.GetRLP(s.key(keyAdmin), &admin); err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(admin.Current)
	case methodAddMerchantVolume:
		var in amountArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.addMerchantVolume(env, in.Amount)
	case methodUpdateRewardPool:
		var in amountArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.updateRewardPool(env, in.Amount)
	case methodSubtractFromRewardPool:
		var in amountArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.subtractFromRewardPool(env, in.Amount)
	case methodSetSessionVolume:
		var in sessionVolumeArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.setSessionVolume(env, in.Session, in.Volume)
	case methodSetLastSession:
		var in sessionArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.setLastSession(env, in.Session)
	case methodSetHighestPrice:
		var in amountArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, s.setHighestPrice(env, in.Amount)
	default:
		return nil, fmt.Errorf("%w: unknown storage method %s", prism.ErrTransportFailure, method)
	}
}

func decodeArgs(args []byte, out any) error {
	if err := rlp.DecodeBytes(args, out); err != nil {
		return fmt.Errorf("%w: decode args: %v", prism.ErrTransportFailure, err)
	}
	return nil
}
