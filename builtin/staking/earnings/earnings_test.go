// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package earnings

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

func newSplitPool(stake, rewardCut, feeShare int64) *Pool {
	var p Pool
	p.Init(big.NewInt(stake), big.NewInt(rewardCut), big.NewInt(feeShare))
	return &p
}

func TestInit(t *testing.T) {
	p := newSplitPool(1000, 100000, 500000)

	assert.Equal(t, big.NewInt(1000), p.TotalStake)
	assert.Equal(t, big.NewInt(1000), p.ClaimableStake)
	assert.Equal(t, big.NewInt(100000), p.RewardCut)
	assert.Equal(t, big.NewInt(500000), p.FeeShare)
	assert.True(t, p.Split)
	assert.True(t, p.HasClaimableShares())
}

func TestAddToRewardPool(t *testing.T) {
	// 10% reward cut: 100 minted splits 90 delegator / 10 operator
	p := newSplitPool(1000, 100000, 500000)
	require.NoError(t, p.AddToRewardPool(big.NewInt(100)))

	assert.Equal(t, big.NewInt(90), p.RewardPool)
	assert.Equal(t, big.NewInt(10), p.OperatorRewardPool)
}

func TestAddToFeePool(t *testing.T) {
	// 50% fee share: delegators get half, operator keeps the rest
	p := newSplitPool(1000, 100000, 500000)
	require.NoError(t, p.AddToFeePool(big.NewInt(101)))

	assert.Equal(t, big.NewInt(50), p.FeePool)
	assert.Equal(t, big.NewInt(51), p.OperatorFeePool)
}

func TestClaimShareDelegator(t *testing.T) {
	// sole delegator holding the whole snapshot takes the whole pool
	p := newSplitPool(1000, 100000, 500000)
	require.NoError(t, p.AddToRewardPool(big.NewInt(100)))

	fees, rewards, err := p.ClaimShare(big.NewInt(1000), false)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), fees)
	assert.Equal(t, big.NewInt(90), rewards)
	assert.False(t, p.HasClaimableShares())
	assert.Equal(t, big.NewInt(0), p.RewardPool)
	// operator pool untouched by a delegator claim
	assert.Equal(t, big.NewInt(10), p.OperatorRewardPool)
}

func TestClaimShareOperator(t *testing.T) {
	p := newSplitPool(1000, 100000, 500000)
	require.NoError(t, p.AddToRewardPool(big.NewInt(100)))
	require.NoError(t, p.AddToFeePool(big.NewInt(100)))

	// operator self-bonded 400 of the 1000 snapshot
	fees, rewards, err := p.ClaimShare(big.NewInt(400), true)
	require.NoError(t, err)
	// 40% of the delegator pools plus the whole operator pools
	assert.Equal(t, big.NewInt(70), fees)    // 20 + 50
	assert.Equal(t, big.NewInt(46), rewards) // 36 + 10
	assert.Equal(t, big.NewInt(0), p.OperatorFeePool)
	assert.Equal(t, big.NewInt(0), p.OperatorRewardPool)
	assert.Equal(t, big.NewInt(600), p.ClaimableStake)

	// remaining delegator claims the rest
	fees, rewards, err = p.ClaimShare(big.NewInt(600), false)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), fees)
	assert.Equal(t, big.NewInt(54), rewards)
	assert.False(t, p.HasClaimableShares())
}

func TestClaimMonotonicity(t *testing.T) {
	p := newSplitPool(1000, 0, 1000000)
	require.NoError(t, p.AddToRewardPool(big.NewInt(997)))

	claimed := new(big.Int)
	last := new(big.Int).Set(p.ClaimableStake)
	for _, stake := range []int64{100, 250, 50, 600} {
		_, rewards, err := p.ClaimShare(big.NewInt(stake), false)
		require.NoError(t, err)
		claimed.Add(claimed, rewards)
		require.Negative(t, p.ClaimableStake.Cmp(last))
		last.Set(p.ClaimableStake)
	}
	assert.Equal(t, big.NewInt(0), p.ClaimableStake)
	// truncation dust stays in the pool, never over-paid
	assert.True(t, claimed.Cmp(big.NewInt(997)) <= 0)
}

func TestClaimShareGuards(t *testing.T) {
	p := newSplitPool(1000, 100000, 500000)

	_, _, err := p.ClaimShare(big.NewInt(1001), false)
	assert.EqualError(t, err, "stake exceeds claimable stake")

	_, _, err = p.ClaimShare(big.NewInt(1000), false)
	require.NoError(t, err)
	_, _, err = p.ClaimShare(big.NewInt(1), false)
	assert.Error(t, err, "drained pool accepts no more claims")
}

func TestPoolShares(t *testing.T) {
	p := newSplitPool(1000, 100000, 500000)
	require.NoError(t, p.AddToRewardPool(big.NewInt(100)))
	require.NoError(t, p.AddToFeePool(big.NewInt(100)))

	rewards, err := p.RewardPoolShare(big.NewInt(400), false)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(36), rewards)
	fees, err := p.FeePoolShare(big.NewInt(400), true)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), fees)

	// views must not mutate
	assert.Equal(t, big.NewInt(1000), p.ClaimableStake)
	assert.Equal(t, big.NewInt(90), p.RewardPool)
	assert.Equal(t, big.NewInt(50), p.OperatorFeePool)
}

func TestCombinedPool(t *testing.T) {
	// a pool written before the schema change: single combined pools,
	// split applied at claim time
	p := &Pool{
		RewardPool:     big.NewInt(100),
		FeePool:        big.NewInt(100),
		TotalStake:     big.NewInt(1000),
		ClaimableStake: big.NewInt(1000),
		RewardCut:      big.NewInt(100000), // 10%
		FeeShare:       big.NewInt(500000), // 50%
	}
	p.normalize()
	require.False(t, p.Split)

	// delegator holding 40% of the snapshot
	fees, rewards, err := p.ClaimShare(big.NewInt(400), false)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), fees)    // 50% of the 40 slice
	assert.Equal(t, big.NewInt(36), rewards) // 90% of the 40 slice
	assert.Equal(t, big.NewInt(80), p.FeePool)
	assert.Equal(t, big.NewInt(64), p.RewardPool)

	// operator claim takes its split of the whole remaining pool on top
	fees, rewards, err = p.ClaimShare(big.NewInt(600), true)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(80), fees)    // 50% of the 80 slice + 50% of pool 80
	assert.Equal(t, big.NewInt(63), rewards) // 90% of the 64 slice + 10% of pool 64
	assert.False(t, p.HasClaimableShares())
	// truncation dust remains in the combined pool
	assert.Equal(t, big.NewInt(1), p.RewardPool)
}

func TestService(t *testing.T) {
	st := state.NewMem()
	svc := NewService(magic.BytesToAddress([]byte("staking")), st)
	enabler := magic.BytesToAddress([]byte("enabler"))

	_, exists, err := svc.Get(enabler, 5)
	require.NoError(t, err)
	assert.False(t, exists)

	p := newSplitPool(1000, 100000, 500000)
	require.NoError(t, p.AddToRewardPool(big.NewInt(100)))
	require.NoError(t, svc.Save(enabler, 5, p))

	loaded, exists, err := svc.Get(enabler, 5)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, big.NewInt(90), loaded.RewardPool)
	assert.Equal(t, big.NewInt(10), loaded.OperatorRewardPool)
	assert.True(t, loaded.Split)

	// rounds are independent records
	_, exists, err = svc.Get(enabler, 6)
	require.NoError(t, err)
	assert.False(t, exists)
}
