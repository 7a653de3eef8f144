// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"github.com/magic-network/magic-protocol/magic"
)

// Address is a wrapper for storage and retrieval of an address at a fixed
// slot. A nil set clears the slot; a cleared or never-written slot reads
// back as the zero address.
type Address struct {
	context *Context
	pos     magic.Bytes32
}

func NewAddress(context *Context, pos magic.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (magic.Address, error) {
	a.context.UseGas(SloadGas)
	storage, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return magic.Address{}, err
	}
	return magic.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(addr *magic.Address) {
	var storage magic.Bytes32
	if addr != nil {
		storage = magic.BytesToBytes32(addr.Bytes())
	}
	a.context.UseGas(SstoreResetGas)
	a.context.state.SetStorage(a.context.address, a.pos, storage)
}
