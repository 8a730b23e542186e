package rewards

import (
	"fmt"
	"math/big"

	"prism/core/host"
	"prism/core/state"
	"prism/core/types"
	"prism/native/prism"
)

// State keys under the store's prefix.
const (
	keyAdmin        = "admin"
	keyAuth         = "auth"
	keyVolume       = "merchant_volume"
	keyPool         = "reward_pool"
	keyLastSession  = "last_session"
	keyHighestPrice = "highest_price"
	keyExtensions   = "extensions"
)

// Store is the storage core of the rewards protocol: the single owner of the
// durable aggregation state. Every mutating operation re-derives the caller
// from the execution environment and gates it on the authorization registry;
// reads are unrestricted and fold in the legacy collaborator's totals.
type Store struct {
	addr   types.Address
	st     *state.Manager
	legacy LegacyPool
}

// NewStore wires a store at addr over st. The admin is seated on first boot
// and left untouched on restart; the authorization registry starts empty.
func NewStore(addr types.Address, st *state.Manager, admin types.Address, legacy LegacyPool) (*Store, error) {
	if addr.IsZero() {
		return nil, prism.ErrInvalidAddress
	}
	if legacy == nil {
		legacy = NoLegacy{}
	}
	s := &Store{addr: addr, st: st, legacy: legacy}
	var seated prism.Admin
	ok, err := st.GetRLP(s.key(keyAdmin), &seated)
	if err != nil {
		return nil, err
	}
	if !ok {
		if admin.IsZero() {
			return nil, prism.ErrInvalidAddress
		}
		if err := st.PutRLP(s.key(keyAdmin), prism.NewAdmin(admin)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Address() types.Address { return s.addr }

func (s *Store) key(name string) []byte {
	return []byte("rewards/" + s.addr.Hex() + "/" + name)
}

func (s *Store) sessionKey(session uint64) []byte {
	return []byte(fmt.Sprintf("rewards/%s/session/%d", s.addr.Hex(), session))
}

// --- gating helpers ---

func (s *Store) ensureAuthorized(env host.Env) error {
	var auth prism.AuthRegistry
	if _, err := s.st.GetRLP(s.key(keyAuth), &auth); err != nil {
		return err
	}
	caller := env.Caller()
	if !auth.IsAuthorized(caller) {
		return fmt.Errorf("%w: %s", prism.ErrUnauthorizedAccess, caller.Hex())
	}
	return nil
}

func (s *Store) ensureAdmin(env host.Env) (*prism.Admin, error) {
	var admin prism.Admin
	if _, err := s.st.GetRLP(s.key(keyAdmin), &admin); err != nil {
		return nil, err
	}
	if err := admin.EnsureAdmin(env.Caller()); err != nil {
		return nil, err
	}
	return &admin, nil
}

// --- admin operations ---

func (s *Store) authorizeLogic(env host.Env, logic types.Address) error {
	if _, err := s.ensureAdmin(env); err != nil {
		return err
	}
	var auth prism.AuthRegistry
	if _, err := s.st.GetRLP(s.key(keyAuth), &auth); err != nil {
		return err
	}
	if err := auth.Authorize(logic); err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyAuth), &auth)
}

func (s *Store) revokeLogic(env host.Env, logic types.Address) error {
	if _, err := s.ensureAdmin(env); err != nil {
		return err
	}
	var auth prism.AuthRegistry
	if _, err := s.st.GetRLP(s.key(keyAuth), &auth); err != nil {
		return err
	}
	auth.Revoke(logic)
	return s.st.PutRLP(s.key(keyAuth), &auth)
}

func (s *Store) transferAdmin(env host.Env, next types.Address) error {
	admin, err := s.ensureAdmin(env)
	if err != nil {
		return err
	}
	if err := admin.Propose(env.Caller(), next); err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyAdmin), admin)
}

func (s *Store) acceptAdmin(env host.Env) error {
	var admin prism.Admin
	if _, err := s.st.GetRLP(s.key(keyAdmin), &admin); err != nil {
		return err
	}
	if err := admin.Accept(env.Caller()); err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyAdmin), &admin)
}

func (s *Store) registerExtension(env host.Env, name string, addr types.Address) error {
	if _, err := s.ensureAdmin(env); err != nil {
		return err
	}
	var reg prism.ExtensionRegistry
	if _, err := s.st.GetRLP(s.key(keyExtensions), &reg); err != nil {
		return err
	}
	if err := reg.Register(name, addr); err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyExtensions), &reg)
}

func (s *Store) revokeExtension(env host.Env, name string) error {
	if _, err := s.ensureAdmin(env); err != nil {
		return err
	}
	var reg prism.ExtensionRegistry
	if _, err := s.st.GetRLP(s.key(keyExtensions), &reg); err != nil {
		return err
	}
	if err := reg.Revoke(name); err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyExtensions), &reg)
}

func (s *Store) resolveExtension(name string) (types.Address, error) {
	var reg prism.ExtensionRegistry
	if _, err := s.st.GetRLP(s.key(keyExtensions), &reg); err != nil {
		return types.ZeroAddress, err
	}
	addr, ok := reg.Resolve(name)
	if !ok {
		return types.ZeroAddress, fmt.Errorf("%w: %s", prism.ErrExtensionNotFound, name)
	}
	return addr, nil
}

// --- reads ---

func (s *Store) bigInt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := s.st.GetRLP(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (s *Store) uint64At(key []byte) (uint64, error) {
	var value uint64
	ok, err := s.st.GetRLP(key, &value)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return value, nil
}

func (s *Store) totalMerchantVolume(env host.Env) (*big.Int, error) {
	current, err := s.bigInt(s.key(keyVolume))
	if err != nil {
		return nil, err
	}
	legacy, err := s.legacy.MerchantVolume(env)
	if err != nil {
		return nil, fmt.Errorf("rewards: legacy merchant volume: %w", err)
	}
	return new(big.Int).Add(current, legacy), nil
}

func (s *Store) totalRewardPool(env host.Env) (*big.Int, error) {
	current, err := s.bigInt(s.key(keyPool))
	if err != nil {
		return nil, err
	}
	legacy, err := s.legacy.RewardPool(env)
	if err != nil {
		return nil, fmt.Errorf("rewards: legacy reward pool: %w", err)
	}
	return new(big.Int).Add(current, legacy), nil
}

func (s *Store) totalVolume(env host.Env) (*big.Int, error) {
	merchant, err := s.totalMerchantVolume(env)
	if err != nil {
		return nil, err
	}
	burned, err := s.legacy.TotalBurned(env)
	if err != nil {
		return nil, fmt.Errorf("rewards: legacy total burned: %w", err)
	}
	return new(big.Int).Add(merchant, burned), nil
}

// --- gated mutations ---

func (s *Store) addMerchantVolume(env host.Env, amount *big.Int) error {
	if err := s.ensureAuthorized(env); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	current, err := s.bigInt(s.key(keyVolume))
	if err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyVolume), new(big.Int).Add(current, amount))
}

func (s *Store) updateRewardPool(env host.Env, amount *big.Int) error {
	if err := s.ensureAuthorized(env); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	current, err := s.bigInt(s.key(keyPool))
	if err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyPool), new(big.Int).Add(current, amount))
}

func (s *Store) subtractFromRewardPool(env host.Env, amount *big.Int) error {
	if err := s.ensureAuthorized(env); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	current, err := s.bigInt(s.key(keyPool))
	if err != nil {
		return err
	}
	// Saturating: the pool clamps at zero instead of wrapping.
	next := new(big.Int).Sub(current, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	return s.st.PutRLP(s.key(keyPool), next)
}

func (s *Store) setSessionVolume(env host.Env, session uint64, volume *big.Int) error {
	if err := s.ensureAuthorized(env); err != nil {
		return err
	}
	if volume == nil || volume.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	return s.st.PutRLP(s.sessionKey(session), volume)
}

func (s *Store) setLastSession(env host.Env, session uint64) error {
	if err := s.ensureAuthorized(env); err != nil {
		return err
	}
	return s.st.PutRLP(s.key(keyLastSession), session)
}

func (s *Store) setHighestPrice(env host.Env, price *big.Int) error {
	if err := s.ensureAuthorized(env); err != nil {
		return err
	}
	if price == nil || price.Sign() < 0 {
		return prism.ErrInvalidAmount
	}
	return s.st.PutRLP(s.key(keyHighestPrice), price)
}
