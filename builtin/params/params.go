// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package params implements the governance parameter store: the system
// owner (executor), the global pause flag, and generic keyed values.
package params

import (
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/log"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	logger = log.WithContext("pkg", "params")

	slotPaused = magic.BytesToBytes32([]byte("param-paused"))
)

// Params binder of the governance parameter store.
type Params struct {
	context  *solidity.Context
	executor *solidity.Address
	paused   *solidity.Uint256
}

// New creates a new instance.
func New(addr magic.Address, state *state.State) *Params {
	context := solidity.NewContext(addr, state, nil)
	return &Params{
		context:  context,
		executor: solidity.NewAddress(context, magic.KeyExecutorAddress),
		paused:   solidity.NewUint256(context, slotPaused),
	}
}

// Get returns the value stored under key, zero if never set.
func (p *Params) Get(key magic.Bytes32) (*big.Int, error) {
	return solidity.NewUint256(p.context, key).Get()
}

// Set stores value under key.
func (p *Params) Set(key magic.Bytes32, value *big.Int) error {
	if err := solidity.NewUint256(p.context, key).Set(value); err != nil {
		return err
	}
	logger.Info("param updated", "key", key.AbbrevString(), "value", value)
	return nil
}

// Executor returns the system owner address.
func (p *Params) Executor() (magic.Address, error) {
	return p.executor.Get()
}

// SetExecutor sets the system owner address.
func (p *Params) SetExecutor(addr magic.Address) {
	p.executor.Set(&addr)
}

// Paused returns the global pause flag.
func (p *Params) Paused() (bool, error) {
	v, err := p.paused.Get()
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

// SetPaused sets the global pause flag.
func (p *Params) SetPaused(paused bool) error {
	v := big.NewInt(0)
	if paused {
		v = big.NewInt(1)
	}
	if err := p.paused.Set(v); err != nil {
		return err
	}
	logger.Info("pause flag updated", "paused", paused)
	return nil
}
