// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rounds implements the round clock: it derives a monotonic
// round number from the block height and drives once-per-round
// initialization of the rest of the protocol.
package rounds

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/magic-network/magic-protocol/builtin/perc"
	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/log"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	logger = log.WithContext("pkg", "rounds")

	slotCurrentBlock         = magic.BytesToBytes32([]byte("rounds-current-block"))
	slotRoundLength          = magic.BytesToBytes32([]byte("rounds-round-length"))
	slotLockAmount           = magic.BytesToBytes32([]byte("rounds-lock-amount"))
	slotLastInitializedRound = magic.BytesToBytes32([]byte("rounds-last-initialized"))
)

// Hook is invoked when a round is initialized, in registration order.
// A hook failure aborts the initialization.
type Hook interface {
	OnRoundInitialized(round uint64) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(round uint64) error

func (f HookFunc) OnRoundInitialized(round uint64) error { return f(round) }

// Rounds implements native methods of the round clock contract.
type Rounds struct {
	state                *state.State
	currentBlock         *solidity.Uint256
	roundLength          *solidity.Uint256
	lockAmount           *solidity.Uint256
	lastInitializedRound *solidity.Uint256

	hooks []Hook
}

// New creates a new instance with the given round length (blocks) and
// lock amount (points of perc.Divisor denoting the rate-locked tail
// portion of each round).
func New(addr magic.Address, st *state.State) *Rounds {
	context := solidity.NewContext(addr, st, nil)
	return &Rounds{
		state:                st,
		currentBlock:         solidity.NewUint256(context, slotCurrentBlock),
		roundLength:          solidity.NewUint256(context, slotRoundLength),
		lockAmount:           solidity.NewUint256(context, slotLockAmount),
		lastInitializedRound: solidity.NewUint256(context, slotLastInitializedRound),
	}
}

// AddHook registers a round-initialization hook.
func (r *Rounds) AddHook(hook Hook) {
	r.hooks = append(r.hooks, hook)
}

// SetRoundLength sets the number of blocks per round.
func (r *Rounds) SetRoundLength(blocks uint64) error {
	if blocks == 0 {
		return errors.New("round length must be positive")
	}
	return r.roundLength.Set(new(big.Int).SetUint64(blocks))
}

// SetLockAmount sets the rate-locked portion of each round.
func (r *Rounds) SetLockAmount(amount uint64) error {
	if !perc.Valid(new(big.Int).SetUint64(amount)) {
		return errors.New("invalid lock amount")
	}
	return r.lockAmount.Set(new(big.Int).SetUint64(amount))
}

// EnterBlock advances the clock to the given block height.
func (r *Rounds) EnterBlock(block uint64) error {
	current, err := r.currentBlock.Get()
	if err != nil {
		return err
	}
	if current.Uint64() > block {
		return errors.New("block height cannot decrease")
	}
	return r.currentBlock.Set(new(big.Int).SetUint64(block))
}

// CurrentBlock returns the clock's block height.
func (r *Rounds) CurrentBlock() (uint64, error) {
	block, err := r.currentBlock.Get()
	if err != nil {
		return 0, err
	}
	return block.Uint64(), nil
}

// CurrentRound returns the round derived from the block height.
func (r *Rounds) CurrentRound() (uint64, error) {
	block, err := r.currentBlock.Get()
	if err != nil {
		return 0, err
	}
	length, err := r.roundLength.Get()
	if err != nil {
		return 0, err
	}
	if length.Sign() == 0 {
		return 0, errors.New("round length not set")
	}
	return block.Uint64() / length.Uint64(), nil
}

// CurrentRoundInitialized reports whether the current round has been
// initialized.
func (r *Rounds) CurrentRoundInitialized() (bool, error) {
	round, err := r.CurrentRound()
	if err != nil {
		return false, err
	}
	last, err := r.lastInitializedRound.Get()
	if err != nil {
		return false, err
	}
	// stored as round+1 so that zero means never initialized
	return last.Uint64() == round+1, nil
}

// CurrentRoundLocked reports whether the block height has entered the
// rate-locked tail of the current round.
func (r *Rounds) CurrentRoundLocked() (bool, error) {
	block, err := r.currentBlock.Get()
	if err != nil {
		return false, err
	}
	length, err := r.roundLength.Get()
	if err != nil {
		return false, err
	}
	if length.Sign() == 0 {
		return false, errors.New("round length not set")
	}
	lock, err := r.lockAmount.Get()
	if err != nil {
		return false, err
	}
	lockBlocks, err := perc.PercOfPoints(length, lock)
	if err != nil {
		return false, err
	}
	intoRound := block.Uint64() % length.Uint64()
	return intoRound >= length.Uint64()-lockBlocks.Uint64(), nil
}

// InitializeRound commits the current round and fires the registered
// hooks. It is a no-op (returning false) when the round is already
// initialized. A hook failure reverts the initialization entirely, so
// the round stays uninitialized and can be retried.
func (r *Rounds) InitializeRound() (bool, error) {
	round, err := r.CurrentRound()
	if err != nil {
		return false, err
	}
	initialized, err := r.CurrentRoundInitialized()
	if err != nil {
		return false, err
	}
	if initialized {
		return false, nil
	}
	checkpoint := r.state.NewCheckpoint()
	if err := r.initialize(round); err != nil {
		r.state.RevertTo(checkpoint)
		return false, err
	}
	logger.Info("round initialized", "round", round)
	return true, nil
}

func (r *Rounds) initialize(round uint64) error {
	if err := r.lastInitializedRound.Set(new(big.Int).SetUint64(round + 1)); err != nil {
		return err
	}
	for _, hook := range r.hooks {
		if err := hook.OnRoundInitialized(round); err != nil {
			return err
		}
	}
	return nil
}

// LastInitializedRound returns the last committed round and whether
// any round has been committed at all.
func (r *Rounds) LastInitializedRound() (uint64, bool, error) {
	last, err := r.lastInitializedRound.Get()
	if err != nil {
		return 0, false, err
	}
	if last.Sign() == 0 {
		return 0, false, nil
	}
	return last.Uint64() - 1, true, nil
}
