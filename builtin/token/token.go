// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token implements the custody ledger of the staked asset and of
// the side fee currency. Transfers are trusted: callers are the protocol
// contracts, not end users, and a failed balance check aborts the whole
// enclosing operation.
package token

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/log"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	logger = log.WithContext("pkg", "token")

	slotTotalSupply = magic.BytesToBytes32([]byte("token-total-supply"))
	slotTotalBurned = magic.BytesToBytes32([]byte("token-total-burned"))
	slotFeeBalances = magic.BytesToBytes32([]byte("token-fee-balances"))
)

// Token implements native methods of the token custody contract.
type Token struct {
	addr  magic.Address
	state *state.State

	totalSupply *solidity.Uint256
	totalBurned *solidity.Uint256
	feeBalances *solidity.Mapping[magic.Address, *big.Int]
}

// New creates a new instance.
func New(addr magic.Address, st *state.State) *Token {
	context := solidity.NewContext(addr, st, nil)
	return &Token{
		addr:  addr,
		state: st,

		totalSupply: solidity.NewUint256(context, slotTotalSupply),
		totalBurned: solidity.NewUint256(context, slotTotalBurned),
		feeBalances: solidity.NewMapping[magic.Address, *big.Int](context, slotFeeBalances),
	}
}

// Address returns the custody contract address.
func (t *Token) Address() magic.Address {
	return t.addr
}

// BalanceOf returns the staked-asset balance of an account.
func (t *Token) BalanceOf(addr magic.Address) (*big.Int, error) {
	return t.state.GetBalance(addr)
}

// TotalSupply returns the minted supply of the staked asset.
func (t *Token) TotalSupply() (*big.Int, error) {
	return t.totalSupply.Get()
}

// TotalBurned returns the cumulative burned amount.
func (t *Token) TotalBurned() (*big.Int, error) {
	return t.totalBurned.Get()
}

// Mint creates amount new tokens credited to addr.
func (t *Token) Mint(addr magic.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative amount")
	}
	bal, err := t.state.GetBalance(addr)
	if err != nil {
		return err
	}
	if err := t.state.SetBalance(addr, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	if err := t.totalSupply.Add(amount); err != nil {
		return err
	}
	logger.Debug("minted", "to", addr, "amount", amount)
	return nil
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(from, to magic.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative amount")
	}
	fromBal, err := t.state.GetBalance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	toBal, err := t.state.GetBalance(to)
	if err != nil {
		return err
	}
	if err := t.state.SetBalance(from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return t.state.SetBalance(to, new(big.Int).Add(toBal, amount))
}

// TransferFrom moves amount from an external account into custody.
func (t *Token) TransferFrom(from magic.Address, custodian magic.Address, amount *big.Int) error {
	return t.Transfer(from, custodian, amount)
}

// Burn destroys amount held by from.
func (t *Token) Burn(from magic.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative amount")
	}
	bal, err := t.state.GetBalance(from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	if err := t.state.SetBalance(from, new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if err := t.totalSupply.Sub(amount); err != nil {
		return err
	}
	if err := t.totalBurned.Add(amount); err != nil {
		return err
	}
	logger.Debug("burned", "from", from, "amount", amount)
	return nil
}

// FeeBalanceOf returns the fee-currency balance held in custody for addr.
func (t *Token) FeeBalanceOf(addr magic.Address) (*big.Int, error) {
	bal, err := t.feeBalances.Get(addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee balance")
	}
	return bal, nil
}

// AddFees credits fee currency held in custody for addr.
func (t *Token) AddFees(addr magic.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative amount")
	}
	bal, err := t.feeBalances.Get(addr)
	if err != nil {
		return err
	}
	return t.feeBalances.Set(addr, new(big.Int).Add(bal, amount), false)
}

// WithdrawFees pays out the fee-currency balance held for addr.
func (t *Token) WithdrawFees(addr magic.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative amount")
	}
	bal, err := t.feeBalances.Get(addr)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return errors.New("insufficient fee balance")
	}
	if err := t.feeBalances.Set(addr, new(big.Int).Sub(bal, amount), false); err != nil {
		return err
	}
	logger.Debug("fees withdrawn", "to", addr, "amount", amount)
	return nil
}
