// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-network/magic-protocol/builtin/params"
	"github.com/magic-network/magic-protocol/builtin/perc"
	"github.com/magic-network/magic-protocol/builtin/reverts"
	"github.com/magic-network/magic-protocol/builtin/staking/delegator"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	stakingAddr = magic.BytesToAddress([]byte("staking"))
	paramsAddr  = magic.BytesToAddress([]byte("params"))
	custodian   = magic.BytesToAddress([]byte("custodian"))
	executor    = magic.BytesToAddress([]byte("executor"))
	reporter    = magic.BytesToAddress([]byte("reporter"))

	enablerA = magic.BytesToAddress([]byte("enabler-a"))
	enablerB = magic.BytesToAddress([]byte("enabler-b"))
	enablerC = magic.BytesToAddress([]byte("enabler-c"))
	delegJ   = magic.BytesToAddress([]byte("delegator-j"))
	delegK   = magic.BytesToAddress([]byte("delegator-k"))
	finder   = magic.BytesToAddress([]byte("finder"))
)

type stubClock struct {
	round       uint64
	initialized bool
	locked      bool
}

func (c *stubClock) CurrentRound() (uint64, error)          { return c.round, nil }
func (c *stubClock) CurrentRoundInitialized() (bool, error) { return c.initialized, nil }
func (c *stubClock) CurrentRoundLocked() (bool, error)      { return c.locked, nil }

type stubCustody struct {
	mintable   *big.Int
	transfers  map[magic.Address]*big.Int
	feePayouts map[magic.Address]*big.Int
	burned     *big.Int
}

func newStubCustody() *stubCustody {
	return &stubCustody{
		mintable:   new(big.Int),
		transfers:  make(map[magic.Address]*big.Int),
		feePayouts: make(map[magic.Address]*big.Int),
		burned:     new(big.Int),
	}
}

func (c *stubCustody) Custodian() magic.Address { return custodian }

func (c *stubCustody) CreateReward(fracNum, fracDenom *big.Int) (*big.Int, error) {
	return perc.PercOf(c.mintable, fracNum, fracDenom)
}

func (c *stubCustody) TrustedTransfer(to magic.Address, amount *big.Int) error {
	if c.transfers[to] == nil {
		c.transfers[to] = new(big.Int)
	}
	c.transfers[to].Add(c.transfers[to], amount)
	return nil
}

func (c *stubCustody) TrustedBurn(amount *big.Int) error {
	c.burned.Add(c.burned, amount)
	return nil
}

func (c *stubCustody) TrustedWithdrawFees(to magic.Address, amount *big.Int) error {
	if c.feePayouts[to] == nil {
		c.feePayouts[to] = new(big.Int)
	}
	c.feePayouts[to].Add(c.feePayouts[to], amount)
	return nil
}

type deposit struct {
	from   magic.Address
	amount *big.Int
}

type stubToken struct {
	deposits []deposit
}

func (s *stubToken) TransferFrom(from, custodian magic.Address, amount *big.Int) error {
	s.deposits = append(s.deposits, deposit{from, new(big.Int).Set(amount)})
	return nil
}

type env struct {
	t       *testing.T
	st      *state.State
	params  *params.Params
	clock   *stubClock
	custody *stubCustody
	token   *stubToken
	mgr     *Manager
}

func newEnv(t *testing.T, poolMaxSize uint64) *env {
	st := state.NewMem()
	p := params.New(paramsAddr, st)
	p.SetExecutor(executor)

	clock := &stubClock{round: 1, initialized: true}
	custody := newStubCustody()
	tok := &stubToken{}
	mgr := New(stakingAddr, st, p, clock, custody, tok, reporter)
	if poolMaxSize > 0 {
		require.NoError(t, mgr.pool.SetMaxSize(poolMaxSize))
	}
	require.NoError(t, mgr.Initialize())
	return &env{t, st, p, clock, custody, tok, mgr}
}

// nextRound advances the clock and recomputes the active set, the way the
// round clock does at each round boundary.
func (e *env) nextRound() {
	e.clock.round++
	require.NoError(e.t, e.mgr.OnRoundInitialized(e.clock.round))
}

func (e *env) selfRegister(addr magic.Address, amount int64, rewardCut, feeShare, price int64) {
	require.NoError(e.t, e.mgr.Bond(addr, big.NewInt(amount), addr))
	require.NoError(e.t, e.mgr.Register(addr, big.NewInt(rewardCut), big.NewInt(feeShare), big.NewInt(price)))
}

func TestBond(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)

	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(500), enablerA))

	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), d.BondedAmount)
	assert.Equal(t, enablerA, d.DelegateAddress)
	assert.Equal(t, uint64(2), d.StartRound)
	assert.Equal(t, delegator.Pending, d.StatusAt(1))
	assert.Equal(t, delegator.Bonded, d.StatusAt(2))

	a, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), a.DelegatedAmount)

	stake, err := e.mgr.PoolStake(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), stake)

	total, err := e.mgr.TotalBonded()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), total)

	// both bonds moved tokens into custody
	require.Len(t, e.token.deposits, 2)
	assert.Equal(t, enablerA, e.token.deposits[0].from)
	assert.Equal(t, delegJ, e.token.deposits[1].from)
}

func TestBondPreconditions(t *testing.T) {
	e := newEnv(t, 0)

	err := e.mgr.Bond(delegJ, big.NewInt(0), enablerA)
	assert.EqualError(t, err, "delegation amount must be positive")

	err = e.mgr.Bond(delegJ, big.NewInt(100), magic.Address{})
	assert.EqualError(t, err, "cannot delegate to the zero address")

	require.NoError(t, e.params.SetPaused(true))
	err = e.mgr.Bond(delegJ, big.NewInt(100), enablerA)
	assert.EqualError(t, err, "system is paused")
	require.NoError(t, e.params.SetPaused(false))

	e.clock.initialized = false
	err = e.mgr.Bond(delegJ, big.NewInt(100), enablerA)
	assert.EqualError(t, err, "current round is not initialized")
}

func TestBondChangeDelegate(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	e.selfRegister(enablerB, 800, 100000, 500000, 100)

	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(500), enablerA))
	e.nextRound()

	// the whole existing bond moves along with the new amount
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(100), enablerB))

	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, enablerB, d.DelegateAddress)
	assert.Equal(t, big.NewInt(600), d.BondedAmount)
	assert.Equal(t, uint64(3), d.StartRound)

	a, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), a.DelegatedAmount)
	b, err := e.mgr.GetDelegator(enablerB)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1400), b.DelegatedAmount)

	stakeA, err := e.mgr.PoolStake(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), stakeA)
	stakeB, err := e.mgr.PoolStake(enablerB)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1400), stakeB)

	// a registered enabler's self-delegation is exclusive
	err = e.mgr.Bond(enablerA, big.NewInt(0), enablerB)
	assert.EqualError(t, err, "registered enabler cannot change delegation")
}

func TestRegisterPreconditions(t *testing.T) {
	e := newEnv(t, 0)

	err := e.mgr.Register(enablerA, big.NewInt(100000), big.NewInt(500000), big.NewInt(100))
	assert.EqualError(t, err, "caller must self-bond first")

	require.NoError(t, e.mgr.Bond(enablerA, big.NewInt(1000), enablerA))
	err = e.mgr.Register(enablerA, big.NewInt(perc.Divisor+1), big.NewInt(500000), big.NewInt(100))
	assert.EqualError(t, err, "invalid reward cut")
	err = e.mgr.Register(enablerA, big.NewInt(100000), big.NewInt(-1), big.NewInt(100))
	assert.EqualError(t, err, "invalid fee share")

	require.NoError(t, e.mgr.Register(enablerA, big.NewInt(100000), big.NewInt(500000), big.NewInt(100)))
	registered, err := e.mgr.IsRegistered(enablerA)
	require.NoError(t, err)
	assert.True(t, registered)

	en, err := e.mgr.GetEnabler(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100000), en.PendingRewardCut)
	assert.Equal(t, big.NewInt(500000), en.PendingFeeShare)
	// rates are pending until the next active-set computation
	assert.Equal(t, big.NewInt(0), en.RewardCut)
}

func TestRegisterEviction(t *testing.T) {
	e := newEnv(t, 2)
	e.selfRegister(enablerA, 100, 0, 0, 1)
	e.selfRegister(enablerB, 50, 0, 0, 1)

	// full pool rejects a newcomer that does not outrank the minimum
	require.NoError(t, e.mgr.Bond(enablerC, big.NewInt(40), enablerC))
	err := e.mgr.Register(enablerC, big.NewInt(0), big.NewInt(0), big.NewInt(1))
	assert.EqualError(t, err, "pool is full")

	// raising the stake above the minimum evicts it
	require.NoError(t, e.mgr.Bond(enablerC, big.NewInt(40), enablerC))
	require.NoError(t, e.mgr.Register(enablerC, big.NewInt(0), big.NewInt(0), big.NewInt(1)))

	registered, err := e.mgr.IsRegistered(enablerB)
	require.NoError(t, err)
	assert.False(t, registered)

	first, err := e.mgr.PoolFirst()
	require.NoError(t, err)
	assert.Equal(t, enablerA, first)
	second, err := e.mgr.PoolNext(first)
	require.NoError(t, err)
	assert.Equal(t, enablerC, second)
}

func TestRegisterLockWindow(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	e.selfRegister(enablerB, 800, 100000, 500000, 80)

	e.clock.locked = true

	err := e.mgr.Register(enablerC, big.NewInt(0), big.NewInt(0), big.NewInt(1))
	assert.EqualError(t, err, "cannot register during the lock window")

	err = e.mgr.Register(enablerA, big.NewInt(200000), big.NewInt(500000), big.NewInt(90))
	assert.EqualError(t, err, "only price may change during the lock window")

	// price may only move down, bounded below by the pool-wide minimum
	err = e.mgr.Register(enablerA, big.NewInt(100000), big.NewInt(500000), big.NewInt(120))
	assert.True(t, reverts.IsRevert(err))
	err = e.mgr.Register(enablerA, big.NewInt(100000), big.NewInt(500000), big.NewInt(70))
	assert.True(t, reverts.IsRevert(err))

	require.NoError(t, e.mgr.Register(enablerA, big.NewInt(100000), big.NewInt(500000), big.NewInt(85)))
	en, err := e.mgr.GetEnabler(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(85), en.PendingPricePerSegment)
}

func TestActiveSetAndReward(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100) // 10% cut, 50% share
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))

	e.custody.mintable = big.NewInt(100)
	e.nextRound() // round 2: A active with frozen stake 2000

	set, err := e.mgr.ActiveSet(2)
	require.NoError(t, err)
	assert.Equal(t, []magic.Address{enablerA}, set.Enablers)
	assert.Equal(t, big.NewInt(2000), set.TotalStake)

	en, err := e.mgr.GetEnabler(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100000), en.RewardCut, "pending rates committed")

	require.NoError(t, e.mgr.Reward(enablerA))
	pool, exists, err := e.mgr.GetEarningsPool(enablerA, 2)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, big.NewInt(90), pool.RewardPool)
	assert.Equal(t, big.NewInt(10), pool.OperatorRewardPool)

	// minted rewards compound the delegated stake
	a, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2100), a.DelegatedAmount)
	stake, err := e.mgr.PoolStake(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2100), stake)

	// reward is once per round
	err = e.mgr.Reward(enablerA)
	assert.EqualError(t, err, "reward already claimed for the current round")

	err = e.mgr.Reward(delegJ)
	assert.EqualError(t, err, "caller is not active in the current round")
}

func TestClaimEarnings(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))

	e.custody.mintable = big.NewInt(100)
	e.nextRound() // round 2
	require.NoError(t, e.mgr.Reward(enablerA))
	e.custody.mintable = big.NewInt(0)
	e.nextRound() // round 3

	// estimate matches the claim that follows
	pending, err := e.mgr.PendingStake(delegJ, 3)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1045), pending)

	require.NoError(t, e.mgr.ClaimEarnings(delegJ, 3))
	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1045), d.BondedAmount, "half of the 90 delegator pool")
	assert.Equal(t, uint64(3), d.LastClaimRound)

	// the operator claim drains the operator pool on top of its share
	require.NoError(t, e.mgr.ClaimEarnings(enablerA, 3))
	a, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1055), a.BondedAmount)

	// conservation: settled bonds sum to the delegated total
	assert.Equal(t, big.NewInt(2100), new(big.Int).Add(d.BondedAmount, a.BondedAmount))
	assert.Equal(t, big.NewInt(2100), a.DelegatedAmount)
}

func TestClaimEarningsBounds(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))

	err := e.mgr.ClaimEarnings(delegJ, 1)
	assert.EqualError(t, err, "end round must be after last claim round")

	err = e.mgr.ClaimEarnings(delegJ, 5)
	assert.EqualError(t, err, "end round must not be after current round")

	require.NoError(t, e.mgr.SetMaxEarningsClaimRounds(executor, 3))
	for i := 0; i < 5; i++ {
		e.nextRound()
	}
	err = e.mgr.ClaimEarnings(delegJ, 6)
	assert.True(t, reverts.IsRevert(err), "span beyond the claim bound")

	// bridging the gap takes successive bounded calls
	require.NoError(t, e.mgr.ClaimEarnings(delegJ, 4))
	require.NoError(t, e.mgr.ClaimEarnings(delegJ, 6))
	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), d.LastClaimRound)
	assert.Equal(t, big.NewInt(1000), d.BondedAmount, "no rewards were minted")
}

func TestUnbondAndWithdraw(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))

	// pending delegations cannot unbond
	err := e.mgr.Unbond(delegJ, big.NewInt(500))
	assert.EqualError(t, err, "caller must be bonded")

	for e.clock.round < 10 {
		e.nextRound()
	}
	err = e.mgr.Unbond(delegJ, big.NewInt(1001))
	assert.EqualError(t, err, "amount exceeds bonded amount")

	require.NoError(t, e.mgr.Unbond(delegJ, big.NewInt(500)))
	lock, err := e.mgr.GetUnbondingLock(delegJ, 0)
	require.NoError(t, err)
	require.True(t, lock.Valid())
	assert.Equal(t, big.NewInt(500), lock.Amount)
	assert.Equal(t, uint64(17), lock.WithdrawRound, "round 10 plus the 7 round unbonding period")

	a, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), a.DelegatedAmount)
	total, err := e.mgr.TotalBonded()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1500), total)

	for e.clock.round < 16 {
		e.nextRound()
	}
	err = e.mgr.WithdrawStake(delegJ, 0)
	assert.EqualError(t, err, "withdraw round 17 not reached")

	e.nextRound()
	require.NoError(t, e.mgr.WithdrawStake(delegJ, 0))
	assert.Equal(t, big.NewInt(500), e.custody.transfers[delegJ])

	// the lock is consumed
	err = e.mgr.WithdrawStake(delegJ, 0)
	assert.EqualError(t, err, "invalid unbonding lock")
}

func TestUnbondAllResigns(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	e.nextRound()

	require.NoError(t, e.mgr.Unbond(enablerA, big.NewInt(1000)))

	registered, err := e.mgr.IsRegistered(enablerA)
	require.NoError(t, err)
	assert.False(t, registered)

	active, err := e.mgr.IsActive(enablerA, 2)
	require.NoError(t, err)
	assert.False(t, active, "resignation clears active set membership")

	d, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.True(t, d.DelegateAddress.IsZero())
	assert.Equal(t, uint64(0), d.StartRound)
	assert.Equal(t, delegator.Unbonded, d.StatusAt(2))
}

func TestRebond(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))
	e.nextRound()

	require.NoError(t, e.mgr.Unbond(delegJ, big.NewInt(400)))
	require.NoError(t, e.mgr.Rebond(delegJ, 0))

	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), d.BondedAmount)
	valid, err := e.mgr.IsValidUnbondingLock(delegJ, 0)
	require.NoError(t, err)
	assert.False(t, valid)

	err = e.mgr.Rebond(delegJ, 0)
	assert.EqualError(t, err, "invalid unbonding lock")
}

func TestRebondFromUnbonded(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))
	e.nextRound()

	require.NoError(t, e.mgr.Unbond(delegJ, big.NewInt(1000)))
	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	require.Equal(t, delegator.Unbonded, d.StatusAt(e.clock.round))

	// the plain variant needs a delegate
	err = e.mgr.Rebond(delegJ, 0)
	assert.EqualError(t, err, "caller must have a delegate")

	require.NoError(t, e.mgr.RebondFromUnbonded(delegJ, enablerA, 0))
	d, err = e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), d.BondedAmount)
	assert.Equal(t, enablerA, d.DelegateAddress)
	assert.Equal(t, e.clock.round+1, d.StartRound)

	a, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2000), a.DelegatedAmount)
}

func TestFees(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	require.NoError(t, e.mgr.Bond(delegJ, big.NewInt(1000), enablerA))
	e.nextRound() // round 2, frozen stake 2000, fee share 50%

	err := e.mgr.UpdateEnablerWithFees(delegJ, enablerA, big.NewInt(100), 2)
	assert.EqualError(t, err, "caller is not the trusted reporter")

	require.NoError(t, e.mgr.UpdateEnablerWithFees(reporter, enablerA, big.NewInt(100), 2))
	pool, _, err := e.mgr.GetEarningsPool(enablerA, 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), pool.FeePool)
	assert.Equal(t, big.NewInt(50), pool.OperatorFeePool)

	e.nextRound()
	pendingFees, err := e.mgr.PendingFees(delegJ, 3)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25), pendingFees)

	require.NoError(t, e.mgr.WithdrawFees(delegJ))
	assert.Equal(t, big.NewInt(25), e.custody.feePayouts[delegJ])
	d, err := e.mgr.GetDelegator(delegJ)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), d.Fees)

	err = e.mgr.WithdrawFees(delegJ)
	assert.EqualError(t, err, "no fees to withdraw")
}

func TestSlashEnabler(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	e.nextRound()

	err := e.mgr.SlashEnabler(delegJ, enablerA, finder, big.NewInt(500000), big.NewInt(100000))
	assert.EqualError(t, err, "caller is not the trusted reporter")

	// 50% slash, 10% finder fee
	require.NoError(t, e.mgr.SlashEnabler(reporter, enablerA, finder, big.NewInt(500000), big.NewInt(100000)))

	d, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), d.BondedAmount)
	assert.Equal(t, big.NewInt(500), d.DelegatedAmount)

	registered, err := e.mgr.IsRegistered(enablerA)
	require.NoError(t, err)
	assert.False(t, registered)
	active, err := e.mgr.IsActive(enablerA, 2)
	require.NoError(t, err)
	assert.False(t, active)

	total, err := e.mgr.TotalBonded()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), total)

	assert.Equal(t, big.NewInt(50), e.custody.transfers[finder])
	assert.Equal(t, big.NewInt(450), e.custody.burned)
}

func TestSlashEmptyBond(t *testing.T) {
	e := newEnv(t, 0)

	events := make(chan Event, 8)
	sub := e.mgr.SubscribeEvents(events)
	defer sub.Unsubscribe()

	require.NoError(t, e.mgr.SlashEnabler(reporter, enablerA, finder, big.NewInt(500000), big.NewInt(100000)))
	assert.Equal(t, big.NewInt(0), e.custody.burned)

	ev := <-events
	assert.Equal(t, "EnablerSlashed", ev.Name)
	assert.Equal(t, big.NewInt(0), ev.Data.(EnablerSlashed).Penalty)
}

func TestElectActiveEnabler(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 600, 0, 0, 100)
	e.selfRegister(enablerB, 300, 0, 0, 50)
	e.selfRegister(enablerC, 100, 0, 0, 200)
	e.nextRound() // round 2: A(600), B(300), C(100)

	// only A and B charge at most 100; draws walk the pool in stake order
	hash := func(n uint64) magic.Bytes32 {
		var b magic.Bytes32
		binary.BigEndian.PutUint64(b[24:], n)
		return b
	}
	elected, err := e.mgr.ElectActiveEnabler(big.NewInt(100), hash(0), 2)
	require.NoError(t, err)
	assert.Equal(t, enablerA, elected)

	elected, err = e.mgr.ElectActiveEnabler(big.NewInt(100), hash(599), 2)
	require.NoError(t, err)
	assert.Equal(t, enablerA, elected)

	elected, err = e.mgr.ElectActiveEnabler(big.NewInt(100), hash(600), 2)
	require.NoError(t, err)
	assert.Equal(t, enablerB, elected)

	// no candidate under the price cap
	elected, err = e.mgr.ElectActiveEnabler(big.NewInt(10), hash(0), 2)
	require.NoError(t, err)
	assert.True(t, elected.IsZero())
}

func TestParamSetters(t *testing.T) {
	e := newEnv(t, 0)

	err := e.mgr.SetUnbondingPeriod(delegJ, 10)
	assert.EqualError(t, err, "caller is not the executor")

	require.NoError(t, e.mgr.SetUnbondingPeriod(executor, 10))
	period, err := e.mgr.uintParam(magic.KeyUnbondingPeriod)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), period)

	err = e.mgr.SetNumEnablers(executor, 10)
	assert.True(t, reverts.IsRevert(err), "pool capacity only grows")
	require.NoError(t, e.mgr.SetNumEnablers(executor, 30))

	err = e.mgr.SetNumActiveEnablers(executor, 31)
	assert.EqualError(t, err, "active set size cannot exceed pool capacity")
	require.NoError(t, e.mgr.SetNumActiveEnablers(executor, 15))
}

func TestAtomicRevert(t *testing.T) {
	e := newEnv(t, 0)
	e.selfRegister(enablerA, 1000, 100000, 500000, 100)
	e.nextRound()

	events := make(chan Event, 8)
	sub := e.mgr.SubscribeEvents(events)
	defer sub.Unsubscribe()

	// fails after the lock and balance mutations would have been staged
	err := e.mgr.Unbond(enablerA, big.NewInt(2000))
	require.Error(t, err)

	d, err := e.mgr.GetDelegator(enablerA)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), d.BondedAmount, "no partial state change")
	valid, err := e.mgr.IsValidUnbondingLock(enablerA, 0)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, events, "no events from a reverted operation")
}
