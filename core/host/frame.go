package host

import (
	"math/big"

	"prism/core/types"
	"prism/native/prism"
)

// frame is the Env of one call in the chain. Identity fields come from the
// runtime's bookkeeping, so a callee cannot be lied to about its caller.
type frame struct {
	rt     *Runtime
	caller types.Address
	origin types.Address
	self   types.Address
	value  *big.Int
	depth  int
}

func (f *frame) Caller() types.Address { return f.caller }
func (f *frame) Origin() types.Address { return f.origin }
func (f *frame) Self() types.Address   { return f.self }
func (f *frame) Now() uint64           { return f.rt.clock.Now() }
func (f *frame) Block() uint64         { return f.rt.clock.Block() }

func (f *frame) TransferredValue() *big.Int {
	if f.value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(f.value)
}

func (f *frame) Transfer(to types.Address, amount *big.Int) error {
	return f.rt.transfer(f.self, to, amount)
}

func (f *frame) Call(to types.Address, method prism.MethodID, args []byte) ([]byte, error) {
	return f.rt.call(f.self, f.origin, f.depth+1, to, method, args, nil)
}

func (f *frame) CallWithValue(to types.Address, method prism.MethodID, args []byte, value *big.Int) ([]byte, error) {
	return f.rt.call(f.self, f.origin, f.depth+1, to, method, args, value)
}
