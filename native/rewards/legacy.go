package rewards

import (
	"math/big"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
)

// Wire methods of the predecessor mining pool.
var (
	methodLegacyMerchantVolume = prism.SelectorOf("get_merchant_volume")
	methodLegacyRewardPool     = prism.SelectorOf("get_accumulative_reward_pool")
	methodLegacyTotalBurned    = prism.SelectorOf("get_total_burned")
)

// LegacyPool is the explicit collaborator interface for the predecessor
// storage this deployment aggregates on top of. A failing legacy read
// surfaces as an error; it is never silently read as zero.
type LegacyPool interface {
	MerchantVolume(env host.Env) (*big.Int, error)
	RewardPool(env host.Env) (*big.Int, error)
	TotalBurned(env host.Env) (*big.Int, error)
}

// NoLegacy serves deployments without a predecessor: every total is zero.
type NoLegacy struct{}

func (NoLegacy) MerchantVolume(host.Env) (*big.Int, error) { return big.NewInt(0), nil }
func (NoLegacy) RewardPool(host.Env) (*big.Int, error)     { return big.NewInt(0), nil }
func (NoLegacy) TotalBurned(host.Env) (*big.Int, error)    { return big.NewInt(0), nil }

// LegacyClient reads the predecessor pool over the call protocol.
type LegacyClient struct {
	Addr types.Address
}

func (c LegacyClient) MerchantVolume(env host.Env) (*big.Int, error) {
	return c.read(env, methodLegacyMerchantVolume)
}

func (c LegacyClient) RewardPool(env host.Env) (*big.Int, error) {
	return c.read(env, methodLegacyRewardPool)
}

func (c LegacyClient) TotalBurned(env host.Env) (*big.Int, error) {
	return c.read(env, methodLegacyTotalBurned)
}

func (c LegacyClient) read(env host.Env, method prism.MethodID) (*big.Int, error) {
	reply, err := env.Call(c.Addr, method, nil)
	if err != nil {
		return nil, err
	}
	return decodeBigInt(reply)
}
