// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package minter implements the inflation policy and acts as the
// custodian of bonded funds. Once per round the mintable ceiling is
// recomputed from the inflation rate and total supply; reward calls
// mint fractions of that ceiling into custody.
package minter

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/magic-network/magic-protocol/builtin/perc"
	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/builtin/token"
	"github.com/magic-network/magic-protocol/log"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	logger = log.WithContext("pkg", "minter")

	slotInflation       = magic.BytesToBytes32([]byte("minter-inflation"))
	slotCurrentMintable = magic.BytesToBytes32([]byte("minter-current-mintable"))
	slotCurrentMinted   = magic.BytesToBytes32([]byte("minter-current-minted"))
)

// Minter implements native methods of the minter contract.
type Minter struct {
	addr  magic.Address
	token *token.Token

	inflation       *solidity.Uint256
	currentMintable *solidity.Uint256
	currentMinted   *solidity.Uint256
}

// New creates a new instance.
func New(addr magic.Address, st *state.State, tok *token.Token) *Minter {
	context := solidity.NewContext(addr, st, nil)
	return &Minter{
		addr:  addr,
		token: tok,

		inflation:       solidity.NewUint256(context, slotInflation),
		currentMintable: solidity.NewUint256(context, slotCurrentMintable),
		currentMinted:   solidity.NewUint256(context, slotCurrentMinted),
	}
}

// Custodian returns the address holding bonded funds.
func (m *Minter) Custodian() magic.Address {
	return m.addr
}

// Inflation returns the per-round inflation rate in points of perc.Divisor.
func (m *Minter) Inflation() (*big.Int, error) {
	return m.inflation.Get()
}

// SetInflation sets the per-round inflation rate.
func (m *Minter) SetInflation(rate *big.Int) error {
	if !perc.Valid(rate) {
		return errors.New("invalid inflation rate")
	}
	return m.inflation.Set(rate)
}

// CurrentMintableTokens returns this round's minting ceiling.
func (m *Minter) CurrentMintableTokens() (*big.Int, error) {
	return m.currentMintable.Get()
}

// CurrentMintedTokens returns the amount already minted this round.
func (m *Minter) CurrentMintedTokens() (*big.Int, error) {
	return m.currentMinted.Get()
}

// SetCurrentRewardTokens recomputes the round's mintable ceiling from the
// inflation rate and the token supply, and resets the minted counter.
// Invoked once per round by round initialization.
func (m *Minter) SetCurrentRewardTokens() error {
	supply, err := m.token.TotalSupply()
	if err != nil {
		return err
	}
	rate, err := m.inflation.Get()
	if err != nil {
		return err
	}
	mintable, err := perc.PercOfPoints(supply, rate)
	if err != nil {
		return err
	}
	if err := m.currentMintable.Set(mintable); err != nil {
		return err
	}
	if err := m.currentMinted.Set(big.NewInt(0)); err != nil {
		return err
	}
	logger.Debug("round reward tokens set", "mintable", mintable)
	return nil
}

// CreateReward mints fracNum/fracDenom of the round's mintable ceiling
// into custody and returns the minted amount. Fails if the cumulative
// minted amount would exceed the ceiling.
func (m *Minter) CreateReward(fracNum, fracDenom *big.Int) (*big.Int, error) {
	mintable, err := m.currentMintable.Get()
	if err != nil {
		return nil, err
	}
	amount, err := perc.PercOf(mintable, fracNum, fracDenom)
	if err != nil {
		return nil, err
	}
	minted, err := m.currentMinted.Get()
	if err != nil {
		return nil, err
	}
	if new(big.Int).Add(minted, amount).Cmp(mintable) > 0 {
		return nil, errors.New("reward amount exceeds mintable tokens")
	}
	if err := m.currentMinted.Add(amount); err != nil {
		return nil, err
	}
	if err := m.token.Mint(m.addr, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// TrustedTransfer pays out amount of the staked asset from custody.
func (m *Minter) TrustedTransfer(to magic.Address, amount *big.Int) error {
	return m.token.Transfer(m.addr, to, amount)
}

// TrustedBurn destroys amount of the staked asset held in custody.
func (m *Minter) TrustedBurn(amount *big.Int) error {
	return m.token.Burn(m.addr, amount)
}

// TrustedWithdrawFees moves fee currency out of the custody pot into the
// recipient's withdrawable fee balance.
func (m *Minter) TrustedWithdrawFees(to magic.Address, amount *big.Int) error {
	if err := m.token.WithdrawFees(m.addr, amount); err != nil {
		return err
	}
	return m.token.AddFees(to, amount)
}

// DepositFees credits fee currency into the custody pot backing future
// fee withdrawals.
func (m *Minter) DepositFees(amount *big.Int) error {
	return m.token.AddFees(m.addr, amount)
}
