// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package solidity provides contract-style storage primitives over the
// world state: typed slots and mappings addressed the way a compiled
// contract would address them.
package solidity

import (
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

// UseGasFunc is invoked for every metered storage access.
type UseGasFunc func(gas uint64)

// Context binds storage primitives to a contract address within a state.
type Context struct {
	address magic.Address
	state   *state.State
	charger UseGasFunc
}

func NewContext(address magic.Address, state *state.State, charger UseGasFunc) *Context {
	return &Context{
		address: address,
		state:   state,
		charger: charger,
	}
}

func (c *Context) Address() magic.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}

func (c *Context) UseGas(gas uint64) {
	if c.charger != nil {
		c.charger(gas)
	}
}
