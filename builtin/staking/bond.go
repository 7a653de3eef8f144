// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/reverts"
	"github.com/magic-network/magic-protocol/builtin/staking/delegator"
	"github.com/magic-network/magic-protocol/magic"
)

// Bond delegates amount of the caller's tokens to a target, settling the
// caller's outstanding earnings first. A bonded caller may move its whole
// stake to a different target unless it is itself a registered enabler.
func (m *Manager) Bond(caller magic.Address, amount *big.Int, to magic.Address) error {
	return m.run("bond", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		if amount.Sign() < 0 {
			return reverts.New("negative amount")
		}
		if to.IsZero() {
			return reverts.New("cannot delegate to the zero address")
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		if err := m.updateDelegatorWithEarnings(caller, round); err != nil {
			return err
		}

		cache := m.newDelegatorCache()
		d, err := cache.get(caller)
		if err != nil {
			return err
		}
		oldDelegate := d.DelegateAddress
		delegationAmount := new(big.Int).Set(amount)

		switch {
		case d.StatusAt(round) == delegator.Unbonded:
			// fresh delegation matures next round
			d.StartRound = round + 1
			d.LastClaimRound = round
		case to != d.DelegateAddress:
			registered, err := m.pool.Contains(caller)
			if err != nil {
				return err
			}
			if registered {
				return reverts.New("registered enabler cannot change delegation")
			}
			// the whole existing bond moves to the new target
			d.StartRound = round + 1
			delegationAmount.Add(delegationAmount, d.BondedAmount)

			old, err := cache.get(oldDelegate)
			if err != nil {
				return err
			}
			old.DelegatedAmount.Sub(old.DelegatedAmount, d.BondedAmount)
			oldRegistered, err := m.pool.Contains(oldDelegate)
			if err != nil {
				return err
			}
			if oldRegistered {
				if err := m.pool.UpdateKey(oldDelegate, old.DelegatedAmount, magic.Address{}, magic.Address{}); err != nil {
					return err
				}
			}
		}
		if delegationAmount.Sign() == 0 {
			return reverts.New("delegation amount must be positive")
		}

		d.DelegateAddress = to
		target, err := cache.get(to)
		if err != nil {
			return err
		}
		target.DelegatedAmount.Add(target.DelegatedAmount, delegationAmount)

		if amount.Sign() > 0 {
			d.BondedAmount.Add(d.BondedAmount, amount)
			if err := m.totalBonded.Add(amount); err != nil {
				return err
			}
			if err := m.token.TransferFrom(caller, m.custody.Custodian(), amount); err != nil {
				return err
			}
		}

		targetRegistered, err := m.pool.Contains(to)
		if err != nil {
			return err
		}
		if targetRegistered {
			if err := m.pool.UpdateKey(to, target.DelegatedAmount, magic.Address{}, magic.Address{}); err != nil {
				return err
			}
		}
		if err := cache.flush(); err != nil {
			return err
		}

		m.queue("Bonded", Bonded{
			Delegator:   caller,
			NewDelegate: to,
			OldDelegate: oldDelegate,
			Additional:  new(big.Int).Set(amount),
			Bonded:      new(big.Int).Set(d.BondedAmount),
		})
		logger.Info("bonded", "delegator", caller, "delegate", to, "amount", amount)
		return nil
	})
}

// Unbond starts a timed withdrawal of amount from the caller's bond. The
// amount matures for withdrawal after the unbonding period.
func (m *Manager) Unbond(caller magic.Address, amount *big.Int) error {
	return m.run("unbond", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		if err := m.updateDelegatorWithEarnings(caller, round); err != nil {
			return err
		}

		cache := m.newDelegatorCache()
		d, err := cache.get(caller)
		if err != nil {
			return err
		}
		if d.StatusAt(round) != delegator.Bonded {
			return reverts.New("caller must be bonded")
		}
		if amount.Sign() <= 0 {
			return reverts.New("amount must be positive")
		}
		if amount.Cmp(d.BondedAmount) > 0 {
			return reverts.New("amount exceeds bonded amount")
		}

		period, err := m.uintParam(magic.KeyUnbondingPeriod)
		if err != nil {
			return err
		}
		withdrawRound := round + period
		lockID := d.NextLockID
		d.NextLockID++
		if err := m.delegators.SaveLock(caller, lockID, &delegator.UnbondingLock{
			Amount:        new(big.Int).Set(amount),
			WithdrawRound: withdrawRound,
		}); err != nil {
			return err
		}

		delegate := d.DelegateAddress
		d.BondedAmount.Sub(d.BondedAmount, amount)
		del, err := cache.get(delegate)
		if err != nil {
			return err
		}
		del.DelegatedAmount.Sub(del.DelegatedAmount, amount)
		if err := m.totalBonded.Sub(amount); err != nil {
			return err
		}

		registered, err := m.pool.Contains(delegate)
		if err != nil {
			return err
		}
		if registered && !(delegate == caller && d.BondedAmount.Sign() == 0) {
			if err := m.pool.UpdateKey(delegate, del.DelegatedAmount, magic.Address{}, magic.Address{}); err != nil {
				return err
			}
		}
		if d.BondedAmount.Sign() == 0 {
			// a fully unbonded enabler leaves the pool
			if err := m.resign(caller); err != nil {
				return err
			}
			d.ClearDelegation()
		}
		if err := cache.flush(); err != nil {
			return err
		}

		m.queue("Unbonded", Unbonded{
			Delegator:     caller,
			Delegate:      delegate,
			LockID:        lockID,
			Amount:        new(big.Int).Set(amount),
			WithdrawRound: withdrawRound,
		})
		logger.Info("unbonded", "delegator", caller, "amount", amount, "withdrawRound", withdrawRound)
		return nil
	})
}

// Rebond reverses an unbonding lock back into the caller's current bond.
func (m *Manager) Rebond(caller magic.Address, lockID uint64) error {
	return m.run("rebond", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		if err := m.updateDelegatorWithEarnings(caller, round); err != nil {
			return err
		}

		cache := m.newDelegatorCache()
		d, err := cache.get(caller)
		if err != nil {
			return err
		}
		if d.StatusAt(round) == delegator.Unbonded {
			return reverts.New("caller must have a delegate")
		}
		if err := m.rebondLock(cache, caller, d, lockID); err != nil {
			return err
		}
		return cache.flush()
	})
}

// RebondFromUnbonded reverses an unbonding lock for a fully unbonded
// caller, re-establishing a delegation to to.
func (m *Manager) RebondFromUnbonded(caller, to magic.Address, lockID uint64) error {
	return m.run("rebond-from-unbonded", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		if to.IsZero() {
			return reverts.New("cannot delegate to the zero address")
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		if err := m.updateDelegatorWithEarnings(caller, round); err != nil {
			return err
		}

		cache := m.newDelegatorCache()
		d, err := cache.get(caller)
		if err != nil {
			return err
		}
		if d.StatusAt(round) != delegator.Unbonded {
			return reverts.New("caller must be unbonded")
		}
		d.DelegateAddress = to
		d.StartRound = round + 1
		if err := m.rebondLock(cache, caller, d, lockID); err != nil {
			return err
		}
		return cache.flush()
	})
}

// rebondLock consumes a lock and re-adds its amount to the bond of d,
// whose delegate must already be set.
func (m *Manager) rebondLock(cache *delegatorCache, caller magic.Address, d *delegator.Delegator, lockID uint64) error {
	lock, err := m.delegators.GetLock(caller, lockID)
	if err != nil {
		return err
	}
	if !lock.Valid() {
		return reverts.New("invalid unbonding lock")
	}
	if err := m.delegators.DeleteLock(caller, lockID); err != nil {
		return err
	}

	d.BondedAmount.Add(d.BondedAmount, lock.Amount)
	del, err := cache.get(d.DelegateAddress)
	if err != nil {
		return err
	}
	del.DelegatedAmount.Add(del.DelegatedAmount, lock.Amount)
	if err := m.totalBonded.Add(lock.Amount); err != nil {
		return err
	}

	registered, err := m.pool.Contains(d.DelegateAddress)
	if err != nil {
		return err
	}
	if registered {
		if err := m.pool.UpdateKey(d.DelegateAddress, del.DelegatedAmount, magic.Address{}, magic.Address{}); err != nil {
			return err
		}
	}

	m.queue("Rebonded", Rebonded{
		Delegator: caller,
		Delegate:  d.DelegateAddress,
		LockID:    lockID,
		Amount:    new(big.Int).Set(lock.Amount),
	})
	logger.Info("rebonded", "delegator", caller, "lockID", lockID, "amount", lock.Amount)
	return nil
}

// WithdrawStake pays out a matured unbonding lock.
func (m *Manager) WithdrawStake(caller magic.Address, lockID uint64) error {
	return m.run("withdraw-stake", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		lock, err := m.delegators.GetLock(caller, lockID)
		if err != nil {
			return err
		}
		if !lock.Valid() {
			return reverts.New("invalid unbonding lock")
		}
		if lock.WithdrawRound > round {
			return reverts.Newf("withdraw round %d not reached", lock.WithdrawRound)
		}
		if err := m.delegators.DeleteLock(caller, lockID); err != nil {
			return err
		}
		if err := m.custody.TrustedTransfer(caller, lock.Amount); err != nil {
			return err
		}

		m.queue("StakeWithdrawn", StakeWithdrawn{
			Delegator: caller,
			LockID:    lockID,
			Amount:    new(big.Int).Set(lock.Amount),
		})
		logger.Info("stake withdrawn", "delegator", caller, "amount", lock.Amount)
		return nil
	})
}

// WithdrawFees settles and pays out the caller's accrued fee balance.
func (m *Manager) WithdrawFees(caller magic.Address) error {
	return m.run("withdraw-fees", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		if err := m.updateDelegatorWithEarnings(caller, round); err != nil {
			return err
		}

		d, err := m.delegators.Get(caller)
		if err != nil {
			return err
		}
		if d.Fees.Sign() == 0 {
			return reverts.New("no fees to withdraw")
		}
		amount := d.Fees
		d.Fees = new(big.Int)
		if err := m.delegators.Save(caller, d); err != nil {
			return err
		}
		if err := m.custody.TrustedWithdrawFees(caller, amount); err != nil {
			return err
		}

		m.queue("FeesWithdrawn", FeesWithdrawn{Delegator: caller, Amount: amount})
		logger.Info("fees withdrawn", "delegator", caller, "amount", amount)
		return nil
	})
}

// ClaimEarnings settles the caller's earnings through endRound. Callers
// further behind than the claim-span bound must call repeatedly with
// increasing end rounds.
func (m *Manager) ClaimEarnings(caller magic.Address, endRound uint64) error {
	return m.run("claim-earnings", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		d, err := m.delegators.Get(caller)
		if err != nil {
			return err
		}
		if endRound <= d.LastClaimRound {
			return reverts.New("end round must be after last claim round")
		}
		if endRound > round {
			return reverts.New("end round must not be after current round")
		}
		return m.updateDelegatorWithEarnings(caller, endRound)
	})
}

// updateDelegatorWithEarnings settles addr's share of every claimable
// earnings pool in (lastClaimRound, endRound], compounding rewards into
// the bonded amount round by round. Rewards compound before the next
// round's fee share is computed.
func (m *Manager) updateDelegatorWithEarnings(addr magic.Address, endRound uint64) error {
	d, err := m.delegators.Get(addr)
	if err != nil {
		return err
	}
	if endRound <= d.LastClaimRound {
		return nil
	}
	startRound := d.LastClaimRound + 1

	var (
		fees    = new(big.Int)
		rewards = new(big.Int)
	)
	if !d.DelegateAddress.IsZero() {
		maxRounds, err := m.uintParam(magic.KeyMaxEarningsClaimRounds)
		if err != nil {
			return err
		}
		if endRound-d.LastClaimRound > maxRounds {
			return reverts.Newf("too many rounds to claim through, limit is %d", maxRounds)
		}
		isOperator := d.DelegateAddress == addr
		for r := startRound; r <= endRound; r++ {
			pool, exists, err := m.earnings.Get(d.DelegateAddress, r)
			if err != nil {
				return err
			}
			if !exists || !pool.HasClaimableShares() {
				continue
			}
			f, rw, err := pool.ClaimShare(d.BondedAmount, isOperator)
			if err != nil {
				return err
			}
			if err := m.earnings.Save(d.DelegateAddress, r, pool); err != nil {
				return err
			}
			fees.Add(fees, f)
			rewards.Add(rewards, rw)
			d.BondedAmount.Add(d.BondedAmount, rw)
		}
		d.Fees.Add(d.Fees, fees)
	}
	d.LastClaimRound = endRound
	if err := m.delegators.Save(addr, d); err != nil {
		return err
	}

	metricClaimRounds().Observe(int64(endRound - startRound + 1))
	if fees.Sign() > 0 || rewards.Sign() > 0 {
		m.queue("EarningsClaimed", EarningsClaimed{
			Delegator:  addr,
			Delegate:   d.DelegateAddress,
			Rewards:    rewards,
			Fees:       fees,
			StartRound: startRound,
			EndRound:   endRound,
		})
	}
	return nil
}

// PendingStake returns what addr's bonded amount would be after settling
// earnings through endRound, without mutating state.
func (m *Manager) PendingStake(addr magic.Address, endRound uint64) (*big.Int, error) {
	bonded, _, err := m.replayEarnings(addr, endRound)
	return bonded, err
}

// PendingFees returns what addr's fee balance would be after settling
// earnings through endRound, without mutating state.
func (m *Manager) PendingFees(addr magic.Address, endRound uint64) (*big.Int, error) {
	_, fees, err := m.replayEarnings(addr, endRound)
	return fees, err
}

// replayEarnings runs the accrual loop over copies of the caller's
// balances, using the view share calculations.
func (m *Manager) replayEarnings(addr magic.Address, endRound uint64) (*big.Int, *big.Int, error) {
	round, err := m.clock.CurrentRound()
	if err != nil {
		return nil, nil, err
	}
	if endRound > round {
		return nil, nil, reverts.New("end round must not be after current round")
	}
	d, err := m.delegators.Get(addr)
	if err != nil {
		return nil, nil, err
	}
	bonded := new(big.Int).Set(d.BondedAmount)
	fees := new(big.Int).Set(d.Fees)
	if d.DelegateAddress.IsZero() {
		return bonded, fees, nil
	}
	isOperator := d.DelegateAddress == addr
	for r := d.LastClaimRound + 1; r <= endRound; r++ {
		pool, exists, err := m.earnings.Get(d.DelegateAddress, r)
		if err != nil {
			return nil, nil, err
		}
		if !exists || !pool.HasClaimableShares() {
			continue
		}
		f, err := pool.FeePoolShare(bonded, isOperator)
		if err != nil {
			return nil, nil, err
		}
		rw, err := pool.RewardPoolShare(bonded, isOperator)
		if err != nil {
			return nil, nil, err
		}
		fees.Add(fees, f)
		bonded.Add(bonded, rw)
	}
	return bonded, fees, nil
}
