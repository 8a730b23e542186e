package host

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"prism/core/state"
	"prism/core/types"
	"prism/native/prism"
)

// maxCallDepth bounds nested synchronous calls. Exceeding it is a transport
// failure, not an application error.
const maxCallDepth = 64

var balancePrefix = []byte("native/balance/")

// Runtime is the synchronous, single-threaded call execution environment the
// protocol core assumes. One external entry runs to completion before the
// next begins; any failure anywhere in the chain reverts every state change
// of the whole entry as a unit.
type Runtime struct {
	mu     sync.Mutex
	actors map[types.Address]Actor
	st     *state.Manager
	clock  Clock
}

// NewRuntime builds a runtime over the given state manager and clock.
func NewRuntime(st *state.Manager, clock Clock) *Runtime {
	return &Runtime{
		actors: make(map[types.Address]Actor),
		st:     st,
		clock:  clock,
	}
}

// Register adds an actor to the address table. Addresses are unique.
func (rt *Runtime) Register(actor Actor) error {
	addr := actor.Address()
	if addr.IsZero() {
		return fmt.Errorf("host: actor address must not be zero")
	}
	if _, exists := rt.actors[addr]; exists {
		return fmt.Errorf("host: actor already registered at %s", addr.Hex())
	}
	rt.actors[addr] = actor
	return nil
}

// State exposes the shared state manager actors persist through.
func (rt *Runtime) State() *state.Manager { return rt.st }

// Clock exposes the logical clock.
func (rt *Runtime) Clock() Clock { return rt.clock }

// Submit runs one top-level external call. On success the staged state is
// committed; on any failure, transport or application, every state change of
// the entry is reverted before the error is returned.
func (rt *Runtime) Submit(from, to types.Address, method prism.MethodID, args []byte, value *big.Int) ([]byte, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	mark := rt.st.Snapshot()
	reply, err := rt.call(from, from, 0, to, method, args, value)
	if err != nil {
		rt.st.RevertTo(mark)
		return nil, err
	}
	if err := rt.st.Commit(); err != nil {
		rt.st.RevertTo(mark)
		return nil, fmt.Errorf("%w: commit: %v", prism.ErrTransportFailure, err)
	}
	return reply, nil
}

// Query runs a call and reverts any state it staged, making it safe for
// read-only external surfaces regardless of what the callee does.
func (rt *Runtime) Query(to types.Address, method prism.MethodID, args []byte) ([]byte, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	mark := rt.st.Snapshot()
	reply, err := rt.call(types.ZeroAddress, types.ZeroAddress, 0, to, method, args, nil)
	rt.st.RevertTo(mark)
	return reply, err
}

func (rt *Runtime) call(caller, origin types.Address, depth int, to types.Address, method prism.MethodID, args []byte, value *big.Int) ([]byte, error) {
	if depth >= maxCallDepth {
		return nil, fmt.Errorf("%w: call depth %d exceeded", prism.ErrTransportFailure, maxCallDepth)
	}
	actor, ok := rt.actors[to]
	if !ok {
		return nil, fmt.Errorf("%w: no actor at %s", prism.ErrTransportFailure, to.Hex())
	}
	if value != nil && value.Sign() > 0 {
		if err := rt.transfer(caller, to, value); err != nil {
			return nil, err
		}
	}
	env := &frame{rt: rt, caller: caller, origin: origin, self: to, value: value, depth: depth}
	reply, err := rt.dispatch(actor, env, method, args)
	if err != nil {
		if IsTransport(err) {
			return nil, err
		}
		// Round-trip through the wire codec so the caller sees the stable
		// error taxonomy no matter what the callee returned.
		return nil, prism.NewCallError(err).Err()
	}
	return reply, nil
}

func (rt *Runtime) dispatch(actor Actor, env Env, method prism.MethodID, args []byte) (reply []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = fmt.Errorf("%w: panic in %s: %v", prism.ErrTransportFailure, actor.Address().Hex(), r)
		}
	}()
	return actor.Dispatch(env, method, args)
}

// IsTransport reports whether err means "the call didn't happen", as opposed
// to "the call happened and was rejected".
func IsTransport(err error) bool {
	return err != nil && errors.Is(err, prism.ErrTransportFailure)
}

// BalanceOf reads an account's native balance.
func (rt *Runtime) BalanceOf(addr types.Address) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := rt.st.GetRLP(balanceKey(addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Credit mints native balance onto an account. Genesis and test funding
// only; protocol flows move value with Transfer.
func (rt *Runtime) Credit(addr types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	balance, err := rt.BalanceOf(addr)
	if err != nil {
		return err
	}
	return rt.st.PutRLP(balanceKey(addr), new(big.Int).Add(balance, amount))
}

func (rt *Runtime) transfer(from, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := rt.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", prism.ErrInsufficientFunds, from.Hex(), fromBalance, amount)
	}
	toBalance, err := rt.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := rt.st.PutRLP(balanceKey(from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return rt.st.PutRLP(balanceKey(to), new(big.Int).Add(toBalance, amount))
}

func balanceKey(addr types.Address) []byte {
	key := make([]byte, 0, len(balancePrefix)+types.AddressLength*2)
	key = append(key, balancePrefix...)
	key = append(key, hex.EncodeToString(addr[:])...)
	return key
}
