package merchant

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"prism/core/host"
	"prism/core/types"
	"prism/native/prism"
)

// Currency identifies a side of an exchange direction.
type Currency uint8

const (
	CurrencyD9 Currency = iota
	CurrencyUSDT
)

// Direction orders an exchange from one currency into another.
type Direction struct {
	From Currency
	To   Currency
}

var (
	methodGetExchangeAmount  = prism.SelectorOf("get_exchange_amount")
	methodAddVotingInterests = prism.SelectorOf("add_voting_interests")
)

type exchangeArgs struct {
	Direction Direction
	Amount    *big.Int
}

type votingArgs struct {
	Account types.Address
	Votes   uint64
}

// AMMClient quotes exchanges against the market-maker collaborator resolved
// through the "amm" extension.
type AMMClient struct {
	Addr types.Address
}

func (c AMMClient) ExchangeAmount(env host.Env, direction Direction, amount *big.Int) (*big.Int, error) {
	args, err := rlp.EncodeToBytes(exchangeArgs{Direction: direction, Amount: amount})
	if err != nil {
		return nil, err
	}
	reply, err := env.Call(c.Addr, methodGetExchangeAmount, args)
	if err != nil {
		return nil, err
	}
	quoted := new(big.Int)
	if err := rlp.DecodeBytes(reply, quoted); err != nil {
		return nil, fmt.Errorf("%w: decode quote: %v", prism.ErrTransportFailure, err)
	}
	return quoted, nil
}

// VotingClient credits governance voting interests through the "voting"
// extension.
type VotingClient struct {
	Addr types.Address
}

func (c VotingClient) AddVotingInterests(env host.Env, account types.Address, votes uint64) error {
	args, err := rlp.EncodeToBytes(votingArgs{Account: account, Votes: votes})
	if err != nil {
		return err
	}
	_, err = env.Call(c.Addr, methodAddVotingInterests, args)
	return err
}
