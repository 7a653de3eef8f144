// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

func newToken() *Token {
	return New(magic.BytesToAddress([]byte("token")), state.NewMem())
}

func TestMintTransferBurn(t *testing.T) {
	tok := newToken()
	alice := magic.BytesToAddress([]byte("alice"))
	bob := magic.BytesToAddress([]byte("bob"))

	assert.NoError(t, tok.Mint(alice, big.NewInt(1000)))

	supply, err := tok.TotalSupply()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), supply)

	assert.NoError(t, tok.Transfer(alice, bob, big.NewInt(400)))

	aliceBal, _ := tok.BalanceOf(alice)
	bobBal, _ := tok.BalanceOf(bob)
	assert.Equal(t, big.NewInt(600), aliceBal)
	assert.Equal(t, big.NewInt(400), bobBal)

	assert.Error(t, tok.Transfer(alice, bob, big.NewInt(601)), "overdraft must fail")

	assert.NoError(t, tok.Burn(bob, big.NewInt(100)))
	burned, err := tok.TotalBurned()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), burned)

	supply, err = tok.TotalSupply()
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(900), supply)

	assert.Error(t, tok.Burn(bob, big.NewInt(1000)))
}

func TestFeeLedger(t *testing.T) {
	tok := newToken()
	alice := magic.BytesToAddress([]byte("alice"))

	bal, err := tok.FeeBalanceOf(alice)
	assert.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())

	assert.NoError(t, tok.AddFees(alice, big.NewInt(55)))
	bal, err = tok.FeeBalanceOf(alice)
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(55), bal)

	assert.Error(t, tok.WithdrawFees(alice, big.NewInt(56)))
	assert.NoError(t, tok.WithdrawFees(alice, big.NewInt(55)))
	bal, err = tok.FeeBalanceOf(alice)
	assert.NoError(t, err)
	assert.Equal(t, 0, bal.Sign())
}
