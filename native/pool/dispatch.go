package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
)

type sessionArgs struct {
	Session uint64
}

type payArgs struct {
	Account types.Address
	Amount  *big.Int
}

type amountArgs struct {
	Amount *big.Int
}

// Dispatch implements host.Actor.
func (l *Logic) Dispatch(env host.Env, method prism.MethodID, args []byte) ([]byte, error) {
	switch method {
	case prism.MethodGetCapabilities:
		return rlp.EncodeToBytes(prism.Capability{Roles: []string{Role}, Version: version})
	case prism.MethodInitializeStorage:
		var in prism.InitializeStorageArgs
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, l.initializeStorage(env, in.Core, in.Extensions)
	case methodUpdatePoolAndRetrieve:
		var in sessionArgs
		ctx, err := decodeEnvelope(args, &in)
		if err != nil {
			return nil, err
		}
		distributable, err := l.updatePoolAndRetrieve(env, ctx, in.Session)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(distributable)
	case methodPayNodeReward:
		var in payArgs
		ctx, err := decodeEnvelope(args, &in)
		if err != nil {
			return nil, err
		}
		return nil, l.payNodeReward(env, ctx, in.Account, in.Amount)
	case methodDeductFromRewardPool:
		var in amountArgs
		ctx, err := decodeEnvelope(args, &in)
		if err != nil {
			return nil, err
		}
		return nil, l.deductFromRewardPool(env, ctx, in.Amount)
	default:
		return nil, fmt.Errorf("%w: unknown pool method %s", prism.ErrTransportFailure, method)
	}
}

func decodeArgs(args []byte, out any) error {
	if err := rlp.DecodeBytes(args, out); err != nil {
		return fmt.Errorf("%w: decode args: %v", prism.ErrTransportFailure, err)
	}
	return nil
}

func decodeEnvelope(args []byte, params any) (prism.Context, error) {
	ctx, err := prism.DecodeEnvelope(args, params)
	if err != nil {
		return prism.Context{}, fmt.Errorf("%w: %v", prism.ErrTransportFailure, err)
	}
	return ctx, nil
}
