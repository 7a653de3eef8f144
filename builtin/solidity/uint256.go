// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/magic-network/magic-protocol/magic"
)

// Uint256 is a wrapper for storage and retrieval of an unsigned big
// integer at a fixed slot. Subtracting below zero is an error, it never
// wraps.
type Uint256 struct {
	context *Context
	pos     magic.Bytes32
}

func NewUint256(context *Context, slot magic.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: slot}
}

func (u *Uint256) Get() (*big.Int, error) {
	u.context.UseGas(SloadGas)
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) error {
	if value.Sign() < 0 {
		return errors.New("negative value")
	}
	if value.BitLen() > 256 {
		return errors.New("value exceeds 256 bits")
	}
	u.context.UseGas(SstoreResetGas)
	u.context.state.SetStorage(u.context.address, u.pos, magic.BytesToBytes32(value.Bytes()))
	return nil
}

func (u *Uint256) Add(value *big.Int) error {
	stored, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(stored.Add(stored, value))
}

func (u *Uint256) Sub(value *big.Int) error {
	stored, err := u.Get()
	if err != nil {
		return err
	}
	if stored.Cmp(value) < 0 {
		return errors.New("subtraction underflow")
	}
	return u.Set(stored.Sub(stored, value))
}
