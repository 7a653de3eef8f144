// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/perc"
	"github.com/magic-network/magic-protocol/builtin/reverts"
	"github.com/magic-network/magic-protocol/builtin/staking/activeset"
	"github.com/magic-network/magic-protocol/builtin/staking/delegator"
	"github.com/magic-network/magic-protocol/builtin/staking/earnings"
	"github.com/magic-network/magic-protocol/magic"
)

// Register declares or updates the caller's candidacy with the given rate
// parameters, which take effect at the next active-set computation. The
// caller must already self-bond a nonzero amount. During a round's lock
// window only the price may change, downward, and no lower than the
// pool-wide minimum pending price.
func (m *Manager) Register(caller magic.Address, rewardCut, feeShare, pricePerSegment *big.Int) error {
	return m.run("register", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		locked, err := m.clock.CurrentRoundLocked()
		if err != nil {
			return err
		}
		e, err := m.enablers.Get(caller)
		if err != nil {
			return err
		}
		registered, err := m.pool.Contains(caller)
		if err != nil {
			return err
		}

		if locked {
			if !registered {
				return reverts.New("cannot register during the lock window")
			}
			if rewardCut.Cmp(e.PendingRewardCut) != 0 || feeShare.Cmp(e.PendingFeeShare) != 0 {
				return reverts.New("only price may change during the lock window")
			}
			floor, err := m.minPendingPrice()
			if err != nil {
				return err
			}
			if pricePerSegment.Cmp(e.PendingPricePerSegment) > 0 || pricePerSegment.Cmp(floor) < 0 {
				return reverts.Newf("price must be in [%v, %v]", floor, e.PendingPricePerSegment)
			}
			e.PendingPricePerSegment = new(big.Int).Set(pricePerSegment)
			if err := m.enablers.Save(caller, e); err != nil {
				return err
			}
			m.queue("EnablerUpdate", EnablerUpdate{
				Enabler:                caller,
				PendingRewardCut:       e.PendingRewardCut,
				PendingFeeShare:        e.PendingFeeShare,
				PendingPricePerSegment: e.PendingPricePerSegment,
				Registered:             true,
			})
			return nil
		}

		if !perc.Valid(rewardCut) {
			return reverts.New("invalid reward cut")
		}
		if !perc.Valid(feeShare) {
			return reverts.New("invalid fee share")
		}
		if pricePerSegment.Sign() < 0 {
			return reverts.New("negative price")
		}
		d, err := m.delegators.Get(caller)
		if err != nil {
			return err
		}
		if d.DelegateAddress != caller || d.BondedAmount.Sign() == 0 {
			return reverts.New("caller must self-bond first")
		}

		e.PendingRewardCut = new(big.Int).Set(rewardCut)
		e.PendingFeeShare = new(big.Int).Set(feeShare)
		e.PendingPricePerSegment = new(big.Int).Set(pricePerSegment)
		if err := m.enablers.Save(caller, e); err != nil {
			return err
		}

		if !registered {
			if err := m.enroll(caller, d.DelegatedAmount); err != nil {
				return err
			}
		}
		m.queue("EnablerUpdate", EnablerUpdate{
			Enabler:                caller,
			PendingRewardCut:       e.PendingRewardCut,
			PendingFeeShare:        e.PendingFeeShare,
			PendingPricePerSegment: e.PendingPricePerSegment,
			Registered:             true,
		})
		logger.Info("enabler registered", "enabler", caller, "stake", d.DelegatedAmount)
		return nil
	})
}

// enroll inserts a new candidate, evicting the minimum-stake member if
// the pool is full and the newcomer outranks it.
func (m *Manager) enroll(caller magic.Address, stake *big.Int) error {
	full, err := m.pool.IsFull()
	if err != nil {
		return err
	}
	if full {
		last, err := m.pool.Last()
		if err != nil {
			return err
		}
		lastKey, err := m.pool.Key(last)
		if err != nil {
			return err
		}
		if stake.Cmp(lastKey) <= 0 {
			return reverts.New("pool is full")
		}
		if err := m.pool.Remove(last); err != nil {
			return err
		}
		m.queue("EnablerEvicted", EnablerEvicted{Enabler: last})
		logger.Info("enabler evicted", "enabler", last, "stake", lastKey)
	}
	return m.pool.Insert(caller, stake, magic.Address{}, magic.Address{})
}

// minPendingPrice scans the pool for the lowest pending price among
// current registrants, the floor for lock-window price moves.
func (m *Manager) minPendingPrice() (*big.Int, error) {
	id, err := m.pool.First()
	if err != nil {
		return nil, err
	}
	var min *big.Int
	for !id.IsZero() {
		e, err := m.enablers.Get(id)
		if err != nil {
			return nil, err
		}
		if min == nil || e.PendingPricePerSegment.Cmp(min) < 0 {
			min = e.PendingPricePerSegment
		}
		if id, err = m.pool.Next(id); err != nil {
			return nil, err
		}
	}
	if min == nil {
		min = new(big.Int)
	}
	return min, nil
}

// OnRoundInitialized computes the new round's active set. It is invoked
// by the round clock as part of round initialization.
func (m *Manager) OnRoundInitialized(round uint64) error {
	return m.run("set-active-enablers", func() error {
		return m.setActiveEnablers(round)
	})
}

// setActiveEnablers snapshots the top candidates into the round's active
// set, commits their pending rates and opens their earnings pools.
func (m *Manager) setActiveEnablers(round uint64) error {
	n, err := m.uintParam(magic.KeyNumActiveEnablers)
	if err != nil {
		return err
	}
	var (
		selected []magic.Address
		total    = new(big.Int)
	)
	id, err := m.pool.First()
	if err != nil {
		return err
	}
	for uint64(len(selected)) < n && !id.IsZero() {
		e, err := m.enablers.Get(id)
		if err != nil {
			return err
		}
		e.CommitPendingRates()
		if err := m.enablers.Save(id, e); err != nil {
			return err
		}

		stake, err := m.pool.Key(id)
		if err != nil {
			return err
		}
		if err := m.activeSets.SaveMember(round, id, &activeset.Member{
			Stake:  stake,
			Active: true,
		}); err != nil {
			return err
		}
		var pool earnings.Pool
		pool.Init(stake, e.RewardCut, e.FeeShare)
		if err := m.earnings.Save(id, round, &pool); err != nil {
			return err
		}

		total.Add(total, stake)
		selected = append(selected, id)
		if id, err = m.pool.Next(id); err != nil {
			return err
		}
	}
	if err := m.activeSets.Save(round, &activeset.Set{
		Enablers:   selected,
		TotalStake: total,
	}); err != nil {
		return err
	}
	logger.Info("active set computed", "round", round, "enablers", len(selected), "totalStake", total)
	return nil
}

// Reward mints the caller's share of the round's issuance into its
// earnings pool. Callable once per round by active enablers.
func (m *Manager) Reward(caller magic.Address) error {
	return m.run("reward", func() error {
		if err := m.whenOperational(); err != nil {
			return err
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		member, err := m.activeSets.GetMember(round, caller)
		if err != nil {
			return err
		}
		if !member.Active {
			return reverts.New("caller is not active in the current round")
		}
		e, err := m.enablers.Get(caller)
		if err != nil {
			return err
		}
		if e.LastRewardRound == round {
			return reverts.New("reward already claimed for the current round")
		}
		set, err := m.activeSets.Get(round)
		if err != nil {
			return err
		}

		amount, err := m.custody.CreateReward(member.Stake, set.TotalStake)
		if err != nil {
			return err
		}
		if err := m.creditRewards(caller, amount, round); err != nil {
			return err
		}
		e.LastRewardRound = round
		if err := m.enablers.Save(caller, e); err != nil {
			return err
		}

		m.queue("RewardMinted", RewardMinted{Enabler: caller, Amount: amount, Round: round})
		logger.Info("reward minted", "enabler", caller, "amount", amount, "round", round)
		return nil
	})
}

// creditRewards adds freshly minted tokens to the enabler's earnings pool
// and to its delegated stake.
func (m *Manager) creditRewards(addr magic.Address, amount *big.Int, round uint64) error {
	pool, exists, err := m.earnings.Get(addr, round)
	if err != nil {
		return err
	}
	if !exists {
		return reverts.Newf("no earnings pool for round %d", round)
	}
	if err := pool.AddToRewardPool(amount); err != nil {
		return err
	}
	if err := m.earnings.Save(addr, round, pool); err != nil {
		return err
	}

	d, err := m.delegators.Get(addr)
	if err != nil {
		return err
	}
	d.DelegatedAmount.Add(d.DelegatedAmount, amount)
	if err := m.delegators.Save(addr, d); err != nil {
		return err
	}
	registered, err := m.pool.Contains(addr)
	if err != nil {
		return err
	}
	if registered {
		if err := m.pool.UpdateKey(addr, d.DelegatedAmount, magic.Address{}, magic.Address{}); err != nil {
			return err
		}
	}
	return m.totalBonded.Add(amount)
}

// UpdateEnablerWithFees credits collected fees to an enabler's earnings
// pool for the given round. Trusted reporter only.
func (m *Manager) UpdateEnablerWithFees(caller, enablerAddr magic.Address, fees *big.Int, round uint64) error {
	return m.run("update-enabler-with-fees", func() error {
		if err := m.reporterOnly(caller); err != nil {
			return err
		}
		if err := m.whenOperational(); err != nil {
			return err
		}
		if fees.Sign() <= 0 {
			return reverts.New("fees must be positive")
		}
		registered, err := m.pool.Contains(enablerAddr)
		if err != nil {
			return err
		}
		if !registered {
			return reverts.New("enabler is not registered")
		}
		pool, exists, err := m.earnings.Get(enablerAddr, round)
		if err != nil {
			return err
		}
		if !exists {
			return reverts.Newf("no earnings pool for round %d", round)
		}
		if err := pool.AddToFeePool(fees); err != nil {
			return err
		}
		if err := m.earnings.Save(enablerAddr, round, pool); err != nil {
			return err
		}
		logger.Info("fees credited", "enabler", enablerAddr, "fees", fees, "round", round)
		return nil
	})
}

// SlashEnabler penalizes an enabler by a percentage of its bonded stake,
// burns the penalty net of an optional finder reward and resigns the
// enabler. Trusted reporter only. Slashing an already empty bond only
// records the event.
func (m *Manager) SlashEnabler(caller, enablerAddr, finder magic.Address, slashPct, finderFeePct *big.Int) error {
	return m.run("slash", func() error {
		if err := m.reporterOnly(caller); err != nil {
			return err
		}
		if err := m.whenOperational(); err != nil {
			return err
		}
		if !perc.Valid(slashPct) {
			return reverts.New("invalid slash percentage")
		}
		if !perc.Valid(finderFeePct) {
			return reverts.New("invalid finder fee percentage")
		}
		round, err := m.clock.CurrentRound()
		if err != nil {
			return err
		}
		if err := m.updateDelegatorWithEarnings(enablerAddr, round); err != nil {
			return err
		}

		cache := m.newDelegatorCache()
		d, err := cache.get(enablerAddr)
		if err != nil {
			return err
		}
		if d.BondedAmount.Sign() == 0 {
			// nothing left to slash
			m.queue("EnablerSlashed", EnablerSlashed{
				Enabler:      enablerAddr,
				Finder:       finder,
				Penalty:      new(big.Int),
				FinderReward: new(big.Int),
			})
			return nil
		}

		penalty, err := perc.PercOfPoints(d.BondedAmount, slashPct)
		if err != nil {
			return err
		}
		d.BondedAmount.Sub(d.BondedAmount, penalty)
		// the delegate's total and the global total track the bond only
		// while the account remains bonded
		if d.StatusAt(round) == delegator.Bonded {
			del, err := cache.get(d.DelegateAddress)
			if err != nil {
				return err
			}
			del.DelegatedAmount.Sub(del.DelegatedAmount, penalty)
			if err := m.totalBonded.Sub(penalty); err != nil {
				return err
			}
			registered, err := m.pool.Contains(d.DelegateAddress)
			if err != nil {
				return err
			}
			if registered && d.DelegateAddress != enablerAddr {
				if err := m.pool.UpdateKey(d.DelegateAddress, del.DelegatedAmount, magic.Address{}, magic.Address{}); err != nil {
					return err
				}
			}
		}
		if err := m.resign(enablerAddr); err != nil {
			return err
		}
		if d.BondedAmount.Sign() == 0 {
			d.ClearDelegation()
		}
		if err := cache.flush(); err != nil {
			return err
		}

		finderReward := new(big.Int)
		burnAmount := new(big.Int).Set(penalty)
		if !finder.IsZero() {
			if finderReward, err = perc.PercOfPoints(penalty, finderFeePct); err != nil {
				return err
			}
			burnAmount.Sub(burnAmount, finderReward)
			if err := m.custody.TrustedTransfer(finder, finderReward); err != nil {
				return err
			}
		}
		if err := m.custody.TrustedBurn(burnAmount); err != nil {
			return err
		}

		m.queue("EnablerSlashed", EnablerSlashed{
			Enabler:      enablerAddr,
			Finder:       finder,
			Penalty:      penalty,
			FinderReward: finderReward,
		})
		logger.Info("enabler slashed", "enabler", enablerAddr, "penalty", penalty, "finder", finder)
		return nil
	})
}

// ElectActiveEnabler picks a member of the round's active set charging at
// most maxPrice, weighted by stake and seeded by blockHash. The zero
// address is returned when no member qualifies.
func (m *Manager) ElectActiveEnabler(maxPrice *big.Int, blockHash magic.Bytes32, round uint64) (magic.Address, error) {
	set, err := m.activeSets.Get(round)
	if err != nil {
		return magic.Address{}, err
	}
	type candidate struct {
		addr  magic.Address
		stake *big.Int
	}
	var (
		candidates []candidate
		total      = new(big.Int)
	)
	for _, id := range set.Enablers {
		member, err := m.activeSets.GetMember(round, id)
		if err != nil {
			return magic.Address{}, err
		}
		if !member.Active {
			continue
		}
		e, err := m.enablers.Get(id)
		if err != nil {
			return magic.Address{}, err
		}
		if e.PricePerSegment.Cmp(maxPrice) > 0 {
			continue
		}
		candidates = append(candidates, candidate{id, member.Stake})
		total.Add(total, member.Stake)
	}
	if len(candidates) == 0 || total.Sign() == 0 {
		return magic.Address{}, nil
	}

	// walk in pool order until the cumulative stake passes the draw
	draw := new(big.Int).Mod(new(big.Int).SetBytes(blockHash.Bytes()), total)
	cumulative := new(big.Int)
	for _, c := range candidates {
		cumulative.Add(cumulative, c.stake)
		if cumulative.Cmp(draw) > 0 {
			return c.addr, nil
		}
	}
	return candidates[len(candidates)-1].addr, nil
}
