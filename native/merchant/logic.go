package merchant

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
const Role = "merchant"

// Extension keys this logic resolves collaborators through.
const (
	ExtensionAMM    = "amm"
	ExtensionVoting = "voting"
)

// Wire method names.
const (
	MethodNameProcessMerchantPayment = "process_merchant_payment"
	MethodNameRedeemD9               = "merchant_user_redeem_d9"
)

var (
	methodProcessMerchantPayment = prism.SelectorOf(MethodNameProcessMerchantPayment)
	methodRedeemD9               = prism.SelectorOf(MethodNameRedeemD9)
)

const version = 1

// pricePrecision is the fixed-point scale for exchange rates.
const pricePrecision = 1_000_000

// protectPercent floors the effective redemption rate at this share of the
// highest rate ever observed, shielding users from a crashed spot rate.
const protectPercent = 70

type meta struct {
	Initialized bool
	Core        types.Address
	Routers     []types.Address
	Extensions  prism.ExtensionRegistry
}

// Logic handles merchant subscription payments and point redemption.
type Logic struct {
	addr   types.Address
	st     *state.Manager
	guard  prism.Guard
	maxAge uint64
}

// NewLogic wires a merchant logic actor at addr. maxAge caps context
// freshness; zero selects the protocol default.
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
	return []byte("merchant/" + l.addr.Hex() + "/meta")
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

func (l *Logic) verifyContext(env host.Env, ctx prism.Context, m *meta) error {
	return ctx.Validate(env.Now(), l.maxAge, m.Routers)
}

func (l *Logic) extension(m *meta, name string) (types.Address, error) {
	addr, ok := m.Extensions.Resolve(name)
	if !ok {
		return types.ZeroAddress, fmt.Errorf("%w: %s", prism.ErrExtensionNotFound, name)
	}
	return addr, nil
}

// processMerchantPayment accrues the attached payment as merchant volume and
// credits the merchant's voting interests one vote per unit paid.
func (l *Logic) processMerchantPayment(env host.Env, ctx prism.Context, merchantID types.Address) error {
	m, err := l.loadMeta()
	if err != nil {
		return err
	}
	if err := l.verifyContext(env, ctx, m); err != nil {
		return err
	}
	return l.guard.Do(func() error {
		amount := env.TransferredValue()
		if amount.Sign() <= 0 {
			return fmt.Errorf("%w: payment must be positive", prism.ErrInvalidAmount)
		}
		store := rewards.Client{Store: m.Core}
		if err := store.AddMerchantVolume(env, amount); err != nil {
			return fmt.Errorf("merchant: accrue volume: %w", err)
		}
		votingAddr, err := l.extension(m, ExtensionVoting)
		if err != nil {
			return err
		}
		voting := VotingClient{Addr: votingAddr}
		if err := voting.AddVotingInterests(env, merchantID, votesFromPayment(amount)); err != nil {
			return fmt.Errorf("merchant: credit votes: %w", err)
		}
		return nil
	})
}

// redeemD9 converts redeemable merchant points (denominated in USDT) into
// native units at the AMM rate, floored at protectPercent of the highest
// rate on record.
func (l *Logic) redeemD9(env host.Env, ctx prism.Context, user types.Address, redeemableUSDT *big.Int) (*big.Int, error) {
	m, err := l.loadMeta()
	if err != nil {
		return nil, err
	}
	if err := l.verifyContext(env, ctx, m); err != nil {
		return nil, err
	}

	var payout *big.Int
	err = l.guard.Do(func() error {
		if redeemableUSDT == nil || redeemableUSDT.Sign() <= 0 {
			return fmt.Errorf("%w: redeemable usdt must be positive", prism.ErrInvalidAmount)
		}
		ammAddr, err := l.extension(m, ExtensionAMM)
		if err != nil {
			return err
		}
		quoter := AMMClient{Addr: ammAddr}
		quoted, err := quoter.ExchangeAmount(env, Direction{From: CurrencyUSDT, To: CurrencyD9}, redeemableUSDT)
		if err != nil {
			return fmt.Errorf("merchant: amm quote: %w", err)
		}

		currentRate := new(big.Int).Mul(quoted, big.NewInt(pricePrecision))
		currentRate.Div(currentRate, redeemableUSDT)

		store := rewards.Client{Store: m.Core}
		highestRate, err := store.HighestPrice(env)
		if err != nil {
			return fmt.Errorf("merchant: read highest rate: %w", err)
		}
		if highestRate.Sign() == 0 || currentRate.Cmp(highestRate) > 0 {
			highestRate = currentRate
			if err := store.SetHighestPrice(env, highestRate); err != nil {
				return fmt.Errorf("merchant: record highest rate: %w", err)
			}
		}

		minRate := new(big.Int).Mul(highestRate, big.NewInt(protectPercent))
		minRate.Div(minRate, big.NewInt(100))
		effectiveRate := currentRate
		if effectiveRate.Cmp(minRate) < 0 {
			effectiveRate = minRate
		}

		payout = new(big.Int).Mul(redeemableUSDT, effectiveRate)
		payout.Div(payout, big.NewInt(pricePrecision))

		if err := env.Transfer(user, payout); err != nil {
			return fmt.Errorf("merchant: pay out redemption: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// votesFromPayment maps native units paid to voting interests, one to one.
func votesFromPayment(amount *big.Int) uint64 {
	if !amount.IsUint64() {
		return ^uint64(0)
	}
	return amount.Uint64()
}
