package rewards

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
)

type addressArgs struct {
	Addr types.Address
}

type extensionArgs struct {
	Name string
	Addr types.Address
}

type nameArgs struct {
	Name string
}

type amountArgs struct {
	Amount *big.Int
}

type sessionArgs struct {
	Session uint64
}

type sessionVolumeArgs struct {
	Session uint64
	Volume  *big.Int
}

// Client is the typed calling surface of a storage core for other actors.
// Every method goes through the call protocol, so the store still derives
// the caller from the execution environment.
type Client struct {
	Store types.Address
}

func (c Client) AuthorizeLogic(env host.Env, logic types.Address) error {
	return c.invoke(env, methodAuthorizeLogic, addressArgs{Addr: logic})
}

func (c Client) RevokeLogic(env host.Env, logic types.Address) error {
	return c.invoke(env, methodRevokeLogic, addressArgs{Addr: logic})
}

func (c Client) AddMerchantVolume(env host.Env, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return c.invoke(env, methodAddMerchantVolume, amountArgs{Amount: amount})
}

func (c Client) UpdateRewardPool(env host.Env, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return c.invoke(env, methodUpdateRewardPool, amountArgs{Amount: amount})
}

func (c Client) SubtractFromRewardPool(env host.Env, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return c.invoke(env, methodSubtractFromRewardPool, amountArgs{Amount: amount})
}

func (c Client) SetSessionVolume(env host.Env, session uint64, volume *big.Int) error {
	if err := validAmount(volume); err != nil {
		return err
	}
	return c.invoke(env, methodSetSessionVolume, sessionVolumeArgs{Session: session, Volume: volume})
}

func (c Client) SetLastSession(env host.Env, session uint64) error {
	return c.invoke(env, methodSetLastSession, sessionArgs{Session: session})
}

func (c Client) SetHighestPrice(env host.Env, price *big.Int) error {
	if err := validAmount(price); err != nil {
		return err
	}
	return c.invoke(env, methodSetHighestPrice, amountArgs{Amount: price})
}

// validAmount rejects amounts the wire encoding could not carry. RLP has no
// representation for a negative big.Int, so the store's own sign checks can
// never see one; the caller side surfaces the same taxonomy error instead of
// an encoding failure.
func validAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: amount required", prism.ErrInvalidAmount)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: amount must not be negative", prism.ErrInvalidAmount)
	}
	return nil
}

func (c Client) TotalMerchantVolume(env host.Env) (*big.Int, error) {
	return c.readBig(env, methodGetTotalMerchantVolume, nil)
}

func (c Client) TotalRewardPool(env host.Env) (*big.Int, error) {
	return c.readBig(env, methodGetTotalRewardPool, nil)
}

func (c Client) TotalVolume(env host.Env) (*big.Int, error) {
	return c.readBig(env, methodGetTotalVolume, nil)
}

func (c Client) SessionVolume(env host.Env, session uint64) (*big.Int, error) {
	args, err := rlp.EncodeToBytes(sessionArgs{Session: session})
	if err != nil {
		return nil, err
	}
	return c.readBig(env, methodGetSessionVolume, args)
}

func (c Client) LastSession(env host.Env) (uint64, error) {
	reply, err := env.Call(c.Store, methodGetLastSession, nil)
	if err != nil {
		return 0, err
	}
	var session uint64
	if err := rlp.DecodeBytes(reply, &session); err != nil {
		return 0, fmt.Errorf("%w: decode last session: %v", prism.ErrTransportFailure, err)
	}
	return session, nil
}

func (c Client) HighestPrice(env host.Env) (*big.Int, error) {
	return c.readBig(env, methodGetHighestPrice, nil)
}

func (c Client) ResolveExtension(env host.Env, name string) (types.Address, error) {
	args, err := rlp.EncodeToBytes(nameArgs{Name: name})
	if err != nil {
		return types.ZeroAddress, err
	}
	reply, err := env.Call(c.Store, methodResolveExtension, args)
	if err != nil {
		return types.ZeroAddress, err
	}
	var addr types.Address
	if err := rlp.DecodeBytes(reply, &addr); err != nil {
		return types.ZeroAddress, fmt.Errorf("%w: decode extension address: %v", prism.ErrTransportFailure, err)
	}
	return addr, nil
}

func (c Client) invoke(env host.Env, method prism.MethodID, args any) error {
	raw, err := rlp.EncodeToBytes(args)
	if err != nil {
		return err
	}
	_, err = env.Call(c.Store, method, raw)
	return err
}

func (c Client) readBig(env host.Env, method prism.MethodID, args []byte) (*big.Int, error) {
	reply, err := env.Call(c.Store, method, args)
	if err != nil {
		return nil, err
	}
	return decodeBigInt(reply)
}

func decodeBigInt(reply []byte) (*big.Int, error) {
	value := new(big.Int)
	if err := rlp.DecodeBytes(reply, value); err != nil {
		return nil, fmt.Errorf("%w: decode amount: %v", prism.ErrTransportFailure, err)
	}
	return value, nil
}
