package merchant

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
)

type paymentArgs struct {
	Merchant types.Address
}

type redeemArgs struct {
	User           types.Address
	RedeemableUSDT *big.Int
}

// Dispatch implements host.Actor.
func (l *Logic) Dispatch(env host.Env, method prism.MethodID, args []byte) ([]byte, error) {
	switch method {
	case prism.MethodGetCapabilities:
		return rlp.EncodeToBytes(prism.Capability{Roles: []string{Role}, Version: version})
	case prism.MethodInitializeStorage:
		var in prism.InitializeStorageArgs
		if err := rlp.DecodeBytes(args, &in); err != nil {
			return nil, fmt.Errorf("%w: decode args: %v", prism.ErrTransportFailure, err)
		}
		return nil, l.initializeStorage(env, in.Core, in.Extensions)
	case methodProcessMerchantPayment:
		var in paymentArgs
		ctx, err := decodeEnvelope(args, &in)
		if err != nil {
			return nil, err
		}
		return nil, l.processMerchantPayment(env, ctx, in.Merchant)
	case methodRedeemD9:
		var in redeemArgs
		ctx, err := decodeEnvelope(args, &in)
		if err != nil {
			return nil, err
		}
		payout, err := l.redeemD9(env, ctx, in.User, in.RedeemableUSDT)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(payout)
	default:
		return nil, fmt.Errorf("%w: unknown merchant method %s", prism.ErrTransportFailure, method)
	}
}

func decodeEnvelope(args []byte, params any) (prism.Context, error) {
	ctx, err := prism.DecodeEnvelope(args, params)
	if err != nil {
		return prism.Context{}, fmt.Errorf("%w: %v", prism.ErrTransportFailure, err)
	}
	return ctx, nil
}
