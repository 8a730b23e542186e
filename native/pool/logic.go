package pool

import (
	"fmt"
	"math/big"

	"prism/core/host"
	"prism/core/state"
	"prism/core/types"
	"prism/native/prism"
	"prism/native/rewards"
)

// Role is the routing role this logic serves.
const Role = "pool"

// Wire method names, exported so routers and external surfaces can name the
// operations without importing their selectors.
const (
	MethodNameUpdatePoolAndRetrieve = "update_pool_and_retrieve"
	MethodNamePayNodeReward         = "pay_node_reward"
	MethodNameDeductFromRewardPool  = "deduct_from_reward_pool"
)

var (
	methodUpdatePoolAndRetrieve = prism.SelectorOf(MethodNameUpdatePoolAndRetrieve)
	methodPayNodeReward         = prism.SelectorOf(MethodNamePayNodeReward)
	methodDeductFromRewardPool  = prism.SelectorOf(MethodNameDeductFromRewardPool)
)

const version = 1

// meta is the only durable state a logic actor carries: who it trusts and
// where its storage lives. Everything else is computed per call from data
// retrieved from the storage core in the same call.
type meta struct {
	Initialized bool
	Core        types.Address
	Routers     []types.Address
	Extensions  prism.ExtensionRegistry
}

// Logic performs the periodic pool accounting: session volume snapshots,
// the percentage-of-delta pool accrual, and reward payouts.
type Logic struct {
	addr   types.Address
	st     *state.Manager
	guard  prism.Guard
	maxAge uint64
}

// NewLogic wires a pool logic actor at addr. maxAge caps context freshness;
// zero selects the protocol default.
func NewLogic(addr types.Address, st *state.Manager, maxAge uint64) (*Logic, error) {
	if addr.IsZero() {
		return nil, prism.ErrInvalidAddress
	}
	if maxAge == 0 {
		maxAge = prism.DefaultMaxContextAge
	}
	return &Logic{addr: addr, st: st, maxAge: maxAge}, nil
}

func (l *Logic) Address() types.Address { return l.addr }

func (l *Logic) metaKey() []byte {
	return []byte("pool/" + l.addr.Hex() + "/meta")
}

func (l *Logic) loadMeta() (*meta, error) {
	var m meta
	if _, err := l.st.GetRLP(l.metaKey(), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (l *Logic) initializeStorage(env host.Env, core types.Address, extensions []prism.ExtensionEntry) error {
	m, err := l.loadMeta()
	if err != nil {
		return err
	}
	if m.Initialized {
		return prism.ErrAlreadyInitialized
	}
	if core.IsZero() {
		return prism.ErrInvalidAddress
	}
	m.Initialized = true
	m.Core = core
	m.Routers = append(m.Routers, env.Caller())
	for _, ext := range extensions {
		if err := m.Extensions.Register(ext.Name, ext.Addr); err != nil {
			return err
		}
	}
	return l.st.PutRLP(l.metaKey(), m)
}

// verifyContext re-validates the capability context independently of any
// validation a prior actor on the path may have run.
func (l *Logic) verifyContext(env host.Env, ctx prism.Context, m *meta) error {
	return ctx.Validate(env.Now(), l.maxAge, m.Routers)
}

func (l *Logic) updatePoolAndRetrieve(env host.Env, ctx prism.Context, session uint64) (*big.Int, error) {
	m, err := l.loadMeta()
	if err != nil {
		return nil, err
	}
	if err := l.verifyContext(env, ctx, m); err != nil {
		return nil, err
	}

	var distributable *big.Int
	err = l.guard.Do(func() error {
		store := rewards.Client{Store: m.Core}

		lastSession, err := store.LastSession(env)
		if err != nil {
			return fmt.Errorf("pool: read last session: %w", err)
		}
		totalVolume, err := store.TotalVolume(env)
		if err != nil {
			return fmt.Errorf("pool: read total volume: %w", err)
		}
		if err := store.SetSessionVolume(env, session, totalVolume); err != nil {
			return fmt.Errorf("pool: record session volume: %w", err)
		}

		delta, err := l.sessionDelta(env, store, session, lastSession, totalVolume)
		if err != nil {
			return err
		}
		if err := store.UpdateRewardPool(env, percentOf(delta, 3)); err != nil {
			return fmt.Errorf("pool: accrue reward pool: %w", err)
		}

		currentPool, err := store.TotalRewardPool(env)
		if err != nil {
			return fmt.Errorf("pool: read reward pool: %w", err)
		}
		distributable = percentOf(currentPool, 10)

		if err := store.SetLastSession(env, session); err != nil {
			return fmt.Errorf("pool: advance last session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return distributable, nil
}

// sessionDelta is the volume growth since the previously recorded session.
// The first session, and a replayed or out-of-order index, count the full
// volume rather than reading a snapshot that may not exist.
func (l *Logic) sessionDelta(env host.Env, store rewards.Client, session, lastSession uint64, totalVolume *big.Int) (*big.Int, error) {
	if session <= lastSession || lastSession == 0 {
		return totalVolume, nil
	}
	lastVolume, err := store.SessionVolume(env, lastSession)
	if err != nil {
		return nil, fmt.Errorf("pool: read session %d volume: %w", lastSession, err)
	}
	delta := new(big.Int).Sub(totalVolume, lastVolume)
	if delta.Sign() < 0 {
		delta = big.NewInt(0)
	}
	return delta, nil
}

func (l *Logic) payNodeReward(env host.Env, ctx prism.Context, account types.Address, amount *big.Int) error {
	m, err := l.loadMeta()
	if err != nil {
		return err
	}
	if err := l.verifyContext(env, ctx, m); err != nil {
		return err
	}
	return l.guard.Do(func() error {
		if err := env.Transfer(account, amount); err != nil {
			return fmt.Errorf("pool: pay node reward: %w", err)
		}
		store := rewards.Client{Store: m.Core}
		if err := store.SubtractFromRewardPool(env, amount); err != nil {
			return fmt.Errorf("pool: deduct paid reward: %w", err)
		}
		return nil
	})
}

func (l *Logic) deductFromRewardPool(env host.Env, ctx prism.Context, amount *big.Int) error {
	m, err := l.loadMeta()
	if err != nil {
		return err
	}
	if err := l.verifyContext(env, ctx, m); err != nil {
		return err
	}
	store := rewards.Client{Store: m.Core}
	if err := store.SubtractFromRewardPool(env, amount); err != nil {
		return fmt.Errorf("pool: deduct from reward pool: %w", err)
	}
	return nil
}

// percentOf computes pct% of value with floor division.
func percentOf(value *big.Int, pct int64) *big.Int {
	scaled := new(big.Int).Mul(value, big.NewInt(pct))
	return scaled.Div(scaled, big.NewInt(100))
}
