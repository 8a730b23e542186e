package host

import (
	"math/big"

	"prism/core/types"
	"prism/native/prism"
)

// Actor is an independently deployable participant in the call protocol.
// Actors reference each other by address only; the runtime resolves the
// address to a live actor at call time.
type Actor interface {
	Address() types.Address
	// Dispatch handles one inbound call. The method identifier and the
	// RLP-encoded argument envelope are the complete wire surface; an actor
	// learns its caller exclusively from env, never from args.
	Dispatch(env Env, method prism.MethodID, args []byte) ([]byte, error)
}

// Env is the execution environment of one call frame. It is the only source
// of caller identity an actor may trust.
type Env interface {
	// Caller is the immediate caller of the current frame.
	Caller() types.Address
	// Origin is the external account that started the top-level call.
	Origin() types.Address
	// Self is the address the current frame is executing as.
	Self() types.Address
	// Now is the logical clock value supplied by the host.
	Now() uint64
	// Block is the current block height.
	Block() uint64
	// TransferredValue is the native value attached to this call.
	TransferredValue() *big.Int
	// Transfer moves native balance from the executing actor.
	Transfer(to types.Address, amount *big.Int) error
	// Call issues a nested synchronous call to another actor.
	Call(to types.Address, method prism.MethodID, args []byte) ([]byte, error)
	// CallWithValue is Call with native value attached.
	CallWithValue(to types.Address, method prism.MethodID, args []byte, value *big.Int) ([]byte, error)
}
