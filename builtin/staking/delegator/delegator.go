// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package delegator stores per-stakeholder bonding state and unbonding
// locks. A record is created implicitly on first bond and never deleted;
// zeroed fields represent the unbonded state.
package delegator

import (
	"encoding/binary"
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	slotDelegators = magic.BytesToBytes32([]byte("staking-delegators"))
	slotLocks      = magic.BytesToBytes32([]byte("staking-unbonding-locks"))
)

// Status describes a delegator's lifecycle position at a given round.
type Status uint8

const (
	Unbonded Status = iota
	Pending
	Bonded
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Bonded:
		return "bonded"
	default:
		return "unbonded"
	}
}

// Delegator holds one stakeholder's bonding state.
type Delegator struct {
	BondedAmount    *big.Int      // own stake
	Fees            *big.Int      // accrued claimable fees
	DelegateAddress magic.Address // zero when unbonded
	DelegatedAmount *big.Int      // stake delegated to this account by others
	StartRound      uint64        // round the pending bond matures
	LastClaimRound  uint64        // earnings settled up to here
	NextLockID      uint64
}

func (d *Delegator) normalize() {
	if d.BondedAmount == nil {
		d.BondedAmount = new(big.Int)
	}
	if d.Fees == nil {
		d.Fees = new(big.Int)
	}
	if d.DelegatedAmount == nil {
		d.DelegatedAmount = new(big.Int)
	}
}

// StatusAt derives the delegator's status for the given round.
func (d *Delegator) StatusAt(round uint64) Status {
	if d.BondedAmount == nil || d.BondedAmount.Sign() == 0 {
		return Unbonded
	}
	if d.StartRound > round {
		return Pending
	}
	return Bonded
}

// ClearDelegation resets the record to the canonical unbonded shape.
func (d *Delegator) ClearDelegation() {
	d.DelegateAddress = magic.Address{}
	d.StartRound = 0
}

// UnbondingLock is an in-flight withdrawal: the amount matures for
// withdrawal at WithdrawRound.
type UnbondingLock struct {
	Amount        *big.Int
	WithdrawRound uint64
}

// Valid reports whether the lock exists and has not been consumed.
func (l *UnbondingLock) Valid() bool {
	return l != nil && l.WithdrawRound > 0
}

// lockKey addresses one holder's unbonding lock.
type lockKey struct {
	holder magic.Address
	id     uint64
}

func (k lockKey) Bytes() []byte {
	b := make([]byte, 0, 28)
	b = append(b, k.holder.Bytes()...)
	b = binary.BigEndian.AppendUint64(b, k.id)
	return b
}

// Service persists delegator records and their unbonding locks.
type Service struct {
	delegators *solidity.Mapping[magic.Address, *Delegator]
	locks      *solidity.Mapping[lockKey, *UnbondingLock]
}

// NewService creates a new instance.
func NewService(addr magic.Address, st *state.State) *Service {
	context := solidity.NewContext(addr, st, nil)
	return &Service{
		delegators: solidity.NewMapping[magic.Address, *Delegator](context, slotDelegators),
		locks:      solidity.NewMapping[lockKey, *UnbondingLock](context, slotLocks),
	}
}

// Get loads the record for addr, a zeroed one if never written.
func (s *Service) Get(addr magic.Address) (*Delegator, error) {
	d, err := s.delegators.Get(addr)
	if err != nil {
		return nil, err
	}
	d.normalize()
	return d, nil
}

// Save writes the record for addr.
func (s *Service) Save(addr magic.Address, d *Delegator) error {
	has, err := s.delegators.Has(addr)
	if err != nil {
		return err
	}
	return s.delegators.Set(addr, d, !has)
}

// GetLock loads the lock with the given id. A consumed or never-created
// lock reads back invalid.
func (s *Service) GetLock(holder magic.Address, id uint64) (*UnbondingLock, error) {
	lock, err := s.locks.Get(lockKey{holder, id})
	if err != nil {
		return nil, err
	}
	if lock.Amount == nil {
		lock.Amount = new(big.Int)
	}
	return lock, nil
}

// SaveLock writes a lock.
func (s *Service) SaveLock(holder magic.Address, id uint64, lock *UnbondingLock) error {
	return s.locks.Set(lockKey{holder, id}, lock, true)
}

// DeleteLock consumes a lock.
func (s *Service) DeleteLock(holder magic.Address, id uint64) error {
	return s.locks.Delete(lockKey{holder, id})
}
