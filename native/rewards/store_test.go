package rewards

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/state"
	"prism/core/types"
	"prism/native/prism"
	"prism/storage"
)

func addr(b byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = b
	return a
}

var (
	adminAddr = addr(1)
	storeAddr = addr(2)
	logicAddr = addr(3)
)

// envActor runs an arbitrary closure inside a call frame so tests can drive
// the typed client with a real caller identity.
type envActor struct {
	addr types.Address
	fn   func(env host.Env) error
}

func (a *envActor) Address() types.Address { return a.addr }

func (a *envActor) Dispatch(env host.Env, _ prism.MethodID, _ []byte) ([]byte, error) {
	return nil, a.fn(env)
}

var pingMethod = prism.SelectorOf("ping")

type fixture struct {
	rt    *host.Runtime
	store *Store
	admin *envActor
	logic *envActor
}

func newFixture(t *testing.T, legacy LegacyPool) *fixture {
	t.Helper()
	rt := host.NewRuntime(state.NewManager(storage.NewMemDB()), &host.ManualClock{Time: 1000})
	store, err := NewStore(storeAddr, rt.State(), adminAddr, legacy)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	f := &fixture{
		rt:    rt,
		store: store,
		admin: &envActor{addr: adminAddr},
		logic: &envActor{addr: logicAddr},
	}
	for _, actor := range []host.Actor{store, f.admin, f.logic} {
		if err := rt.Register(actor); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return f
}

// asAdmin and asLogic submit fn as a top-level entry from the given actor.
func (f *fixture) asAdmin(t *testing.T, fn func(env host.Env) error) error {
	t.Helper()
	f.admin.fn = fn
	_, err := f.rt.Submit(adminAddr, adminAddr, pingMethod, nil, nil)
	return err
}

func (f *fixture) asLogic(t *testing.T, fn func(env host.Env) error) error {
	t.Helper()
	f.logic.fn = fn
	_, err := f.rt.Submit(logicAddr, logicAddr, pingMethod, nil, nil)
	return err
}

func (f *fixture) authorizeLogic(t *testing.T) {
	t.Helper()
	client := Client{Store: storeAddr}
	if err := f.asAdmin(t, func(env host.Env) error {
		return client.AuthorizeLogic(env, logicAddr)
	}); err != nil {
		t.Fatalf("authorize logic: %v", err)
	}
}

func TestMutationsRequireAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	client := Client{Store: storeAddr}
	err := f.asLogic(t, func(env host.Env) error {
		return client.AddMerchantVolume(env, big.NewInt(10))
	})
	if !errors.Is(err, prism.ErrUnauthorizedAccess) {
		t.Fatalf("unauthorized mutation: %v", err)
	}
	// Authorization itself is admin-gated.
	err = f.asLogic(t, func(env host.Env) error {
		return client.AuthorizeLogic(env, logicAddr)
	})
	if !errors.Is(err, prism.ErrUnauthorizedAdmin) {
		t.Fatalf("non-admin authorized a logic: %v", err)
	}
}

func TestAuthorizedLogicAccumulatesVolume(t *testing.T) {
	f := newFixture(t, nil)
	f.authorizeLogic(t)
	client := Client{Store: storeAddr}

	if err := f.asLogic(t, func(env host.Env) error {
		if err := client.AddMerchantVolume(env, big.NewInt(100)); err != nil {
			return err
		}
		return client.AddMerchantVolume(env, big.NewInt(50))
	}); err != nil {
		t.Fatalf("add volume: %v", err)
	}

	if err := f.asLogic(t, func(env host.Env) error {
		total, err := client.TotalMerchantVolume(env)
		if err != nil {
			return err
		}
		if total.Cmp(big.NewInt(150)) != 0 {
			t.Fatalf("unexpected total %s", total)
		}
		return nil
	}); err != nil {
		t.Fatalf("read total: %v", err)
	}
}

func TestRewardPoolSubtractClampsAtZero(t *testing.T) {
	f := newFixture(t, nil)
	f.authorizeLogic(t)
	client := Client{Store: storeAddr}

	if err := f.asLogic(t, func(env host.Env) error {
		if err := client.UpdateRewardPool(env, big.NewInt(30)); err != nil {
			return err
		}
		return client.SubtractFromRewardPool(env, big.NewInt(100))
	}); err != nil {
		t.Fatalf("pool ops: %v", err)
	}
	if err := f.asLogic(t, func(env host.Env) error {
		pool, err := client.TotalRewardPool(env)
		if err != nil {
			return err
		}
		if pool.Sign() != 0 {
			t.Fatalf("pool did not clamp: %s", pool)
		}
		return nil
	}); err != nil {
		t.Fatalf("read pool: %v", err)
	}
}

func TestMutationsRejectInvalidAmounts(t *testing.T) {
	f := newFixture(t, nil)
	f.authorizeLogic(t)
	client := Client{Store: storeAddr}

	err := f.asLogic(t, func(env host.Env) error {
		return client.AddMerchantVolume(env, big.NewInt(-5))
	})
	if !errors.Is(err, prism.ErrInvalidAmount) {
		t.Fatalf("negative amount accepted: %v", err)
	}
	err = f.asLogic(t, func(env host.Env) error {
		return client.SetHighestPrice(env, nil)
	})
	if !errors.Is(err, prism.ErrInvalidAmount) {
		t.Fatalf("nil amount accepted: %v", err)
	}
}

func TestSessionBookkeeping(t *testing.T) {
	f := newFixture(t, nil)
	f.authorizeLogic(t)
	client := Client{Store: storeAddr}

	if err := f.asLogic(t, func(env host.Env) error {
		if err := client.SetSessionVolume(env, 7, big.NewInt(400)); err != nil {
			return err
		}
		return client.SetLastSession(env, 7)
	}); err != nil {
		t.Fatalf("session writes: %v", err)
	}
	if err := f.asLogic(t, func(env host.Env) error {
		volume, err := client.SessionVolume(env, 7)
		if err != nil {
			return err
		}
		if volume.Cmp(big.NewInt(400)) != 0 {
			t.Fatalf("unexpected session volume %s", volume)
		}
		last, err := client.LastSession(env)
		if err != nil {
			return err
		}
		if last != 7 {
			t.Fatalf("unexpected last session %d", last)
		}
		missing, err := client.SessionVolume(env, 99)
		if err != nil {
			return err
		}
		if missing.Sign() != 0 {
			t.Fatalf("unrecorded session nonzero: %s", missing)
		}
		return nil
	}); err != nil {
		t.Fatalf("session reads: %v", err)
	}
}

func TestRevokedLogicLosesAccess(t *testing.T) {
	f := newFixture(t, nil)
	f.authorizeLogic(t)
	client := Client{Store: storeAddr}

	if err := f.asAdmin(t, func(env host.Env) error {
		return client.RevokeLogic(env, logicAddr)
	}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	err := f.asLogic(t, func(env host.Env) error {
		return client.AddMerchantVolume(env, big.NewInt(1))
	})
	if !errors.Is(err, prism.ErrUnauthorizedAccess) {
		t.Fatalf("revoked logic still writes: %v", err)
	}
}

func TestAdminSurvivesRestart(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	if _, err := NewStore(storeAddr, st, adminAddr, nil); err != nil {
		t.Fatalf("first boot: %v", err)
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Second boot with a different admin argument must not reseat.
	if _, err := NewStore(storeAddr, st, addr(9), nil); err != nil {
		t.Fatalf("second boot: %v", err)
	}
	var admin prism.Admin
	ok, err := st.GetRLP([]byte("rewards/"+storeAddr.Hex()+"/admin"), &admin)
	if err != nil || !ok {
		t.Fatalf("read admin: %v ok=%v", err, ok)
	}
	if admin.Current != adminAddr {
		t.Fatalf("admin reseated to %s", admin.Current.Hex())
	}
}

// legacyStub answers the predecessor pool's read methods with fixed totals.
type legacyStub struct {
	addr types.Address
	fail bool
}

func (l *legacyStub) Address() types.Address { return l.addr }

func (l *legacyStub) Dispatch(_ host.Env, method prism.MethodID, _ []byte) ([]byte, error) {
	if l.fail {
		return nil, errors.New("legacy pool unreachable")
	}
	switch method {
	case prism.SelectorOf("get_merchant_volume"):
		return rlp.EncodeToBytes(big.NewInt(1000))
	case prism.SelectorOf("get_accumulative_reward_pool"):
		return rlp.EncodeToBytes(big.NewInt(200))
	case prism.SelectorOf("get_total_burned"):
		return rlp.EncodeToBytes(big.NewInt(30))
	default:
		return nil, prism.ErrTransportFailure
	}
}

func TestTotalsFoldLegacyPool(t *testing.T) {
	legacyAddr := addr(8)
	f := newFixture(t, LegacyClient{Addr: legacyAddr})
	if err := f.rt.Register(&legacyStub{addr: legacyAddr}); err != nil {
		t.Fatalf("register legacy: %v", err)
	}
	f.authorizeLogic(t)
	client := Client{Store: storeAddr}

	if err := f.asLogic(t, func(env host.Env) error {
		return client.AddMerchantVolume(env, big.NewInt(500))
	}); err != nil {
		t.Fatalf("add volume: %v", err)
	}
	if err := f.asLogic(t, func(env host.Env) error {
		merchant, err := client.TotalMerchantVolume(env)
		if err != nil {
			return err
		}
		if merchant.Cmp(big.NewInt(1500)) != 0 {
			t.Fatalf("merchant total %s", merchant)
		}
		pool, err := client.TotalRewardPool(env)
		if err != nil {
			return err
		}
		if pool.Cmp(big.NewInt(200)) != 0 {
			t.Fatalf("pool total %s", pool)
		}
		total, err := client.TotalVolume(env)
		if err != nil {
			return err
		}
		// merchant volume (local + legacy) plus legacy burn.
		if total.Cmp(big.NewInt(1530)) != 0 {
			t.Fatalf("total volume %s", total)
		}
		return nil
	}); err != nil {
		t.Fatalf("reads: %v", err)
	}
}

func TestLegacyFailurePropagates(t *testing.T) {
	legacyAddr := addr(8)
	f := newFixture(t, LegacyClient{Addr: legacyAddr})
	if err := f.rt.Register(&legacyStub{addr: legacyAddr, fail: true}); err != nil {
		t.Fatalf("register legacy: %v", err)
	}
	client := Client{Store: storeAddr}
	err := f.asLogic(t, func(env host.Env) error {
		_, err := client.TotalMerchantVolume(env)
		return err
	})
	if err == nil {
		t.Fatal("legacy failure read as zero")
	}
}

func TestExtensionLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	client := Client{Store: storeAddr}
	extAddr := addr(6)

	err := f.asAdmin(t, func(env host.Env) error {
		raw, err := rlp.EncodeToBytes(extensionArgs{Name: "amm", Addr: extAddr})
		if err != nil {
			return err
		}
		_, err = env.Call(storeAddr, methodRegisterExtension, raw)
		return err
	})
	if err != nil {
		t.Fatalf("register extension: %v", err)
	}
	if err := f.asLogic(t, func(env host.Env) error {
		got, err := client.ResolveExtension(env, "amm")
		if err != nil {
			return err
		}
		if got != extAddr {
			t.Fatalf("resolved %s", got.Hex())
		}
		_, err = client.ResolveExtension(env, "voting")
		if !errors.Is(err, prism.ErrExtensionNotFound) {
			t.Fatalf("missing extension resolved: %v", err)
		}
		return nil
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestAdminTransferOverTheWire(t *testing.T) {
	f := newFixture(t, nil)
	next := f.logic

	if err := f.asAdmin(t, func(env host.Env) error {
		raw, err := rlp.EncodeToBytes(addressArgs{Addr: next.addr})
		if err != nil {
			return err
		}
		_, err = env.Call(storeAddr, methodTransferAdmin, raw)
		return err
	}); err != nil {
		t.Fatalf("transfer admin: %v", err)
	}
	if err := f.asLogic(t, func(env host.Env) error {
		_, err := env.Call(storeAddr, methodAcceptAdmin, nil)
		return err
	}); err != nil {
		t.Fatalf("accept admin: %v", err)
	}
	// The old admin has lost the role.
	client := Client{Store: storeAddr}
	err := f.asAdmin(t, func(env host.Env) error {
		return client.AuthorizeLogic(env, addr(9))
	})
	if !errors.Is(err, prism.ErrUnauthorizedAdmin) {
		t.Fatalf("old admin kept role: %v", err)
	}
}
