// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package earnings implements the per-(enabler, round) earnings pool: the
// ledger of minted rewards and collected fees a round's stakers claim
// proportional shares from.
//
// Two accounting modes coexist. Pools written by current code split the
// operator's share out of every incoming amount at crediting time. Pools
// written before that schema change hold a single combined pool per
// currency which is split at every claim using the frozen cut and share.
// New pools are always created in split mode; the combined path only
// survives for reading old state.
package earnings

import (
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/perc"
	"github.com/magic-network/magic-protocol/builtin/reverts"
)

// Pool is the earnings record of one enabler for one round it was active.
type Pool struct {
	RewardPool     *big.Int // delegator rewards, or the combined pool in legacy mode
	FeePool        *big.Int // delegator fees, or the combined pool in legacy mode
	TotalStake     *big.Int // stake snapshot frozen at round start
	ClaimableStake *big.Int // remaining unclaimed stake

	RewardCut *big.Int // operator reward cut frozen for this round
	FeeShare  *big.Int // delegator fee share frozen for this round

	OperatorRewardPool *big.Int // operator-only rewards, split mode only
	OperatorFeePool    *big.Int // operator-only fees, split mode only
	Split              bool     // false only for pools predating the schema change
}

// Init freezes the pool for a round: the full stake snapshot is claimable
// and the operator's cut and share are locked in.
func (p *Pool) Init(stake, rewardCut, feeShare *big.Int) {
	p.RewardPool = new(big.Int)
	p.FeePool = new(big.Int)
	p.TotalStake = new(big.Int).Set(stake)
	p.ClaimableStake = new(big.Int).Set(stake)
	p.RewardCut = new(big.Int).Set(rewardCut)
	p.FeeShare = new(big.Int).Set(feeShare)
	p.OperatorRewardPool = new(big.Int)
	p.OperatorFeePool = new(big.Int)
	p.Split = true
}

// normalize replaces nil amounts with zero so that a pool decoded from
// empty storage is usable.
func (p *Pool) normalize() {
	for _, f := range []**big.Int{
		&p.RewardPool, &p.FeePool, &p.TotalStake, &p.ClaimableStake,
		&p.RewardCut, &p.FeeShare, &p.OperatorRewardPool, &p.OperatorFeePool,
	} {
		if *f == nil {
			*f = new(big.Int)
		}
	}
}

// AddToFeePool credits fees. Split mode carves out the operator's portion
// up front; legacy mode grows the combined pool.
func (p *Pool) AddToFeePool(fees *big.Int) error {
	if !p.Split {
		p.FeePool.Add(p.FeePool, fees)
		return nil
	}
	delegatorFees, err := perc.PercOfPoints(fees, p.FeeShare)
	if err != nil {
		return err
	}
	p.FeePool.Add(p.FeePool, delegatorFees)
	p.OperatorFeePool.Add(p.OperatorFeePool, new(big.Int).Sub(fees, delegatorFees))
	return nil
}

// AddToRewardPool credits minted rewards, split the same way as fees but
// driven by the reward cut.
func (p *Pool) AddToRewardPool(rewards *big.Int) error {
	if !p.Split {
		p.RewardPool.Add(p.RewardPool, rewards)
		return nil
	}
	operatorRewards, err := perc.PercOfPoints(rewards, p.RewardCut)
	if err != nil {
		return err
	}
	p.RewardPool.Add(p.RewardPool, new(big.Int).Sub(rewards, operatorRewards))
	p.OperatorRewardPool.Add(p.OperatorRewardPool, operatorRewards)
	return nil
}

// HasClaimableShares returns whether any stake remains unclaimed.
func (p *Pool) HasClaimableShares() bool {
	return p.ClaimableStake != nil && p.ClaimableStake.Sign() > 0
}

// ClaimShare pays out the proportional share for stake and decrements the
// remaining claimable stake. The operator additionally drains its
// operator-only pools. Callers must invoke this at most once per claimant
// per round; a second call would skew every later claimant's share.
func (p *Pool) ClaimShare(stake *big.Int, isOperator bool) (fees, rewards *big.Int, err error) {
	if stake.Cmp(p.ClaimableStake) > 0 {
		return nil, nil, reverts.New("stake exceeds claimable stake")
	}

	fees, feeDebit, err := p.feeShareOf(stake, isOperator)
	if err != nil {
		return nil, nil, err
	}
	rewards, rewardDebit, err := p.rewardShareOf(stake, isOperator)
	if err != nil {
		return nil, nil, err
	}

	p.FeePool.Sub(p.FeePool, feeDebit)
	p.RewardPool.Sub(p.RewardPool, rewardDebit)
	if p.Split && isOperator {
		p.OperatorFeePool.SetInt64(0)
		p.OperatorRewardPool.SetInt64(0)
	}
	p.ClaimableStake.Sub(p.ClaimableStake, stake)
	return fees, rewards, nil
}

// FeePoolShare returns what ClaimShare would pay in fees, without
// mutating the pool.
func (p *Pool) FeePoolShare(stake *big.Int, isOperator bool) (*big.Int, error) {
	share, _, err := p.feeShareOf(stake, isOperator)
	return share, err
}

// RewardPoolShare returns what ClaimShare would pay in rewards, without
// mutating the pool.
func (p *Pool) RewardPoolShare(stake *big.Int, isOperator bool) (*big.Int, error) {
	share, _, err := p.rewardShareOf(stake, isOperator)
	return share, err
}

// feeShareOf computes the fee payout for stake and the amount to debit
// from the delegator fee pool.
func (p *Pool) feeShareOf(stake *big.Int, isOperator bool) (share, poolDebit *big.Int, err error) {
	slice := new(big.Int)
	if p.HasClaimableShares() {
		if slice, err = perc.PercOf(p.FeePool, stake, p.ClaimableStake); err != nil {
			return nil, nil, err
		}
	}
	if p.Split {
		share = new(big.Int).Set(slice)
		if isOperator {
			share.Add(share, p.OperatorFeePool)
		}
		return share, slice, nil
	}
	// combined pool: the claimant keeps only its fee-share portion of the
	// slice; the operator's split is taken from the whole remaining pool
	delegatorFees, err := perc.PercOfPoints(slice, p.FeeShare)
	if err != nil {
		return nil, nil, err
	}
	share = new(big.Int).Set(delegatorFees)
	poolDebit = new(big.Int).Set(delegatorFees)
	if isOperator {
		operatorFees, err := perc.PercOfPoints(p.FeePool, complement(p.FeeShare))
		if err != nil {
			return nil, nil, err
		}
		share.Add(share, operatorFees)
		poolDebit.Add(poolDebit, operatorFees)
	}
	return share, poolDebit, nil
}

// rewardShareOf computes the reward payout for stake and the amount to
// debit from the delegator reward pool.
func (p *Pool) rewardShareOf(stake *big.Int, isOperator bool) (share, poolDebit *big.Int, err error) {
	slice := new(big.Int)
	if p.HasClaimableShares() {
		if slice, err = perc.PercOf(p.RewardPool, stake, p.ClaimableStake); err != nil {
			return nil, nil, err
		}
	}
	if p.Split {
		share = new(big.Int).Set(slice)
		if isOperator {
			share.Add(share, p.OperatorRewardPool)
		}
		return share, slice, nil
	}
	delegatorRewards, err := perc.PercOfPoints(slice, complement(p.RewardCut))
	if err != nil {
		return nil, nil, err
	}
	share = new(big.Int).Set(delegatorRewards)
	poolDebit = new(big.Int).Set(delegatorRewards)
	if isOperator {
		operatorRewards, err := perc.PercOfPoints(p.RewardPool, p.RewardCut)
		if err != nil {
			return nil, nil, err
		}
		share.Add(share, operatorRewards)
		poolDebit.Add(poolDebit, operatorRewards)
	}
	return share, poolDebit, nil
}

func complement(points *big.Int) *big.Int {
	return new(big.Int).Sub(big.NewInt(perc.Divisor), points)
}
