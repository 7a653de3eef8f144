// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package builtin binds the protocol contracts to well-known addresses.
package builtin

import (
	"github.com/magic-network/magic-protocol/builtin/minter"
	"github.com/magic-network/magic-protocol/builtin/params"
	"github.com/magic-network/magic-protocol/builtin/rounds"
	"github.com/magic-network/magic-protocol/builtin/staking"
	"github.com/magic-network/magic-protocol/builtin/token"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

type contract struct {
	Name    string
	Address magic.Address
}

// Builtin contracts binding.
var (
	Params  = &paramsContract{contract{"Params", magic.BytesToAddress([]byte("Params"))}}
	Token   = &tokenContract{contract{"Token", magic.BytesToAddress([]byte("Token"))}}
	Minter  = &minterContract{contract{"Minter", magic.BytesToAddress([]byte("Minter"))}}
	Rounds  = &roundsContract{contract{"Rounds", magic.BytesToAddress([]byte("Rounds"))}}
	Staking = &stakingContract{contract{"Staking", magic.BytesToAddress([]byte("Staking"))}}
)

type (
	paramsContract  struct{ contract }
	tokenContract   struct{ contract }
	minterContract  struct{ contract }
	roundsContract  struct{ contract }
	stakingContract struct{ contract }
)

func (p *paramsContract) WithState(state *state.State) *params.Params {
	return params.New(p.Address, state)
}

func (t *tokenContract) WithState(state *state.State) *token.Token {
	return token.New(t.Address, state)
}

func (m *minterContract) WithState(state *state.State) *minter.Minter {
	return minter.New(m.Address, state, Token.WithState(state))
}

func (r *roundsContract) WithState(state *state.State) *rounds.Rounds {
	return rounds.New(r.Address, state)
}

func (s *stakingContract) WithState(state *state.State, reporter magic.Address) *staking.Manager {
	return staking.New(
		s.Address,
		state,
		Params.WithState(state),
		Rounds.WithState(state),
		Minter.WithState(state),
		Token.WithState(state),
		reporter,
	)
}

// System is every builtin contract bound to a single state, with the
// round-boundary hooks wired between them.
type System struct {
	Params  *params.Params
	Token   *token.Token
	Minter  *minter.Minter
	Rounds  *rounds.Rounds
	Staking *staking.Manager
}

// NewSystem binds the contracts to st. At each round boundary the minter
// freezes the round's mintable supply before the staking manager
// recomputes the active set, so rewards minted in a round draw on that
// round's allotment.
func NewSystem(st *state.State, reporter magic.Address) *System {
	sys := &System{
		Params:  Params.WithState(st),
		Token:   Token.WithState(st),
		Minter:  Minter.WithState(st),
		Rounds:  Rounds.WithState(st),
		Staking: Staking.WithState(st, reporter),
	}
	sys.Rounds.AddHook(rounds.HookFunc(func(uint64) error {
		return sys.Minter.SetCurrentRewardTokens()
	}))
	sys.Rounds.AddHook(sys.Staking)
	return sys
}

// Initialize seeds the genesis state: executor assignment, round pacing
// and the staking defaults.
func (s *System) Initialize(executor magic.Address) error {
	s.Params.SetExecutor(executor)
	if err := s.Rounds.SetRoundLength(magic.InitialRoundLength); err != nil {
		return err
	}
	if err := s.Rounds.SetLockAmount(magic.InitialRoundLockAmount); err != nil {
		return err
	}
	return s.Staking.Initialize()
}
