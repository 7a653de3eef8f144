// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking implements the delegation ledger: enabler registration
// and eviction, delegator bonding with time-locked withdrawal, per-round
// active-set selection, reward and fee crediting with lazy accrual, and
// slashing.
//
// Every public operation is atomic. A precondition or arithmetic failure
// anywhere aborts the whole operation with no state change and no events.
package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/event"

	"github.com/magic-network/magic-protocol/builtin/params"
	"github.com/magic-network/magic-protocol/builtin/reverts"
	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/builtin/staking/activeset"
	"github.com/magic-network/magic-protocol/builtin/staking/delegator"
	"github.com/magic-network/magic-protocol/builtin/staking/earnings"
	"github.com/magic-network/magic-protocol/builtin/staking/enabler"
	"github.com/magic-network/magic-protocol/builtin/staking/sortedpool"
	"github.com/magic-network/magic-protocol/log"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/metrics"
	"github.com/magic-network/magic-protocol/state"
)

var (
	logger = log.WithContext("pkg", "staking")

	slotTotalBonded = magic.BytesToBytes32([]byte("staking-total-bonded"))

	metricOps         = metrics.LazyLoadCounterVec("staking_op_count", []string{"op"})
	metricClaimRounds = metrics.LazyLoadHistogram("staking_claim_rounds", metrics.BucketClaimRounds)
)

// RoundClock is the round/epoch collaborator.
type RoundClock interface {
	CurrentRound() (uint64, error)
	CurrentRoundInitialized() (bool, error)
	CurrentRoundLocked() (bool, error)
}

// Custody is the minting-policy collaborator holding bonded tokens.
type Custody interface {
	Custodian() magic.Address
	CreateReward(fracNum, fracDenom *big.Int) (*big.Int, error)
	TrustedTransfer(to magic.Address, amount *big.Int) error
	TrustedBurn(amount *big.Int) error
	TrustedWithdrawFees(to magic.Address, amount *big.Int) error
}

// TokenLedger moves the staked asset into custody on bonds.
type TokenLedger interface {
	TransferFrom(from, custodian magic.Address, amount *big.Int) error
}

// Manager implements native methods of the staking ledger.
type Manager struct {
	addr  magic.Address
	state *state.State

	params   *params.Params
	clock    RoundClock
	custody  Custody
	token    TokenLedger
	reporter magic.Address // trusted fee/fraud collaborator

	pool       *sortedpool.Pool
	earnings   *earnings.Service
	enablers   *enabler.Service
	delegators *delegator.Service
	activeSets *activeset.Service

	totalBonded *solidity.Uint256

	feed    event.Feed
	pending []Event
}

// New creates a new instance. reporter is the only address allowed to
// credit fees and trigger slashes.
func New(
	addr magic.Address,
	st *state.State,
	p *params.Params,
	clock RoundClock,
	custody Custody,
	token TokenLedger,
	reporter magic.Address,
) *Manager {
	context := solidity.NewContext(addr, st, nil)
	return &Manager{
		addr:        addr,
		state:       st,
		params:      p,
		clock:       clock,
		custody:     custody,
		token:       token,
		reporter:    reporter,
		pool:        sortedpool.New(addr, st),
		earnings:    earnings.NewService(addr, st),
		enablers:    enabler.NewService(addr, st),
		delegators:  delegator.NewService(addr, st),
		activeSets:  activeset.NewService(addr, st),
		totalBonded: solidity.NewUint256(context, slotTotalBonded),
	}
}

// Initialize seeds default governance parameters. It is a no-op for
// values that are already set.
func (m *Manager) Initialize() error {
	maxSize, err := m.pool.MaxSize()
	if err != nil {
		return err
	}
	if maxSize == 0 {
		if err := m.pool.SetMaxSize(magic.InitialNumEnablers); err != nil {
			return err
		}
	}
	defaults := []struct {
		key   magic.Bytes32
		value uint64
	}{
		{magic.KeyUnbondingPeriod, magic.InitialUnbondingPeriod},
		{magic.KeyNumActiveEnablers, magic.InitialNumActiveEnablers},
		{magic.KeyMaxEarningsClaimRounds, magic.InitialMaxEarningsClaimRounds},
	}
	for _, d := range defaults {
		v, err := m.params.Get(d.key)
		if err != nil {
			return err
		}
		if v.Sign() == 0 {
			if err := m.params.Set(d.key, new(big.Int).SetUint64(d.value)); err != nil {
				return err
			}
		}
	}
	return nil
}

// run executes op atomically: on failure every mutation is reverted and
// staged events are dropped.
func (m *Manager) run(op string, fn func() error) error {
	checkpoint := m.state.NewCheckpoint()
	if err := fn(); err != nil {
		m.state.RevertTo(checkpoint)
		m.discard()
		logger.Debug("operation rejected", "op", op, "err", err)
		return err
	}
	m.publish()
	metricOps().AddWithLabel(1, map[string]string{"op": op})
	return nil
}

// whenOperational gates every state-mutating entry point.
func (m *Manager) whenOperational() error {
	paused, err := m.params.Paused()
	if err != nil {
		return err
	}
	if paused {
		return reverts.New("system is paused")
	}
	initialized, err := m.clock.CurrentRoundInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		return reverts.New("current round is not initialized")
	}
	return nil
}

func (m *Manager) executorOnly(caller magic.Address) error {
	executor, err := m.params.Executor()
	if err != nil {
		return err
	}
	if caller != executor {
		return reverts.New("caller is not the executor")
	}
	return nil
}

func (m *Manager) reporterOnly(caller magic.Address) error {
	if caller != m.reporter {
		return reverts.New("caller is not the trusted reporter")
	}
	return nil
}

func (m *Manager) uintParam(key magic.Bytes32) (uint64, error) {
	v, err := m.params.Get(key)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

func (m *Manager) setUintParam(caller magic.Address, name string, key magic.Bytes32, value uint64) error {
	return m.run("set-param", func() error {
		if err := m.executorOnly(caller); err != nil {
			return err
		}
		v := new(big.Int).SetUint64(value)
		if err := m.params.Set(key, v); err != nil {
			return err
		}
		m.queue("ParamUpdate", ParamUpdate{Param: name, Value: v})
		return nil
	})
}

// SetUnbondingPeriod sets how many rounds an unbonding lock stays
// immature. Executor only.
func (m *Manager) SetUnbondingPeriod(caller magic.Address, rounds uint64) error {
	return m.setUintParam(caller, "unbondingPeriod", magic.KeyUnbondingPeriod, rounds)
}

// SetMaxEarningsClaimRounds bounds the accrual span of a single claim.
// Executor only.
func (m *Manager) SetMaxEarningsClaimRounds(caller magic.Address, rounds uint64) error {
	if rounds == 0 {
		return reverts.New("max earnings claim rounds must be positive")
	}
	return m.setUintParam(caller, "maxEarningsClaimRounds", magic.KeyMaxEarningsClaimRounds, rounds)
}

// SetNumEnablers raises the candidate pool capacity. Executor only.
func (m *Manager) SetNumEnablers(caller magic.Address, n uint64) error {
	return m.run("set-param", func() error {
		if err := m.executorOnly(caller); err != nil {
			return err
		}
		if err := m.pool.SetMaxSize(n); err != nil {
			return err
		}
		m.queue("ParamUpdate", ParamUpdate{Param: "numEnablers", Value: new(big.Int).SetUint64(n)})
		return nil
	})
}

// SetNumActiveEnablers sets the per-round active set size, bounded by the
// pool capacity. Executor only.
func (m *Manager) SetNumActiveEnablers(caller magic.Address, n uint64) error {
	return m.run("set-param", func() error {
		if err := m.executorOnly(caller); err != nil {
			return err
		}
		maxSize, err := m.pool.MaxSize()
		if err != nil {
			return err
		}
		if n > maxSize {
			return reverts.New("active set size cannot exceed pool capacity")
		}
		if err := m.params.Set(magic.KeyNumActiveEnablers, new(big.Int).SetUint64(n)); err != nil {
			return err
		}
		m.queue("ParamUpdate", ParamUpdate{Param: "numActiveEnablers", Value: new(big.Int).SetUint64(n)})
		return nil
	})
}

// TotalBonded returns the global bonded total.
func (m *Manager) TotalBonded() (*big.Int, error) {
	return m.totalBonded.Get()
}

// GetDelegator returns the delegator record for addr.
func (m *Manager) GetDelegator(addr magic.Address) (*delegator.Delegator, error) {
	return m.delegators.Get(addr)
}

// GetEnabler returns the enabler record for addr.
func (m *Manager) GetEnabler(addr magic.Address) (*enabler.Enabler, error) {
	return m.enablers.Get(addr)
}

// GetUnbondingLock returns holder's lock with the given id.
func (m *Manager) GetUnbondingLock(holder magic.Address, id uint64) (*delegator.UnbondingLock, error) {
	return m.delegators.GetLock(holder, id)
}

// IsValidUnbondingLock reports whether holder's lock exists and is
// unconsumed.
func (m *Manager) IsValidUnbondingLock(holder magic.Address, id uint64) (bool, error) {
	lock, err := m.delegators.GetLock(holder, id)
	if err != nil {
		return false, err
	}
	return lock.Valid(), nil
}

// IsRegistered reports whether addr is in the candidate pool.
func (m *Manager) IsRegistered(addr magic.Address) (bool, error) {
	return m.pool.Contains(addr)
}

// DelegatorStatus derives addr's status at the current round.
func (m *Manager) DelegatorStatus(addr magic.Address) (delegator.Status, error) {
	d, err := m.delegators.Get(addr)
	if err != nil {
		return delegator.Unbonded, err
	}
	round, err := m.clock.CurrentRound()
	if err != nil {
		return delegator.Unbonded, err
	}
	return d.StatusAt(round), nil
}

// GetEarningsPool returns the (enabler, round) earnings record.
func (m *Manager) GetEarningsPool(addr magic.Address, round uint64) (*earnings.Pool, bool, error) {
	return m.earnings.Get(addr, round)
}

// ActiveSet returns the selected enablers for a round.
func (m *Manager) ActiveSet(round uint64) (*activeset.Set, error) {
	return m.activeSets.Get(round)
}

// IsActive reports whether addr is an uncleared member of a round's
// active set.
func (m *Manager) IsActive(addr magic.Address, round uint64) (bool, error) {
	member, err := m.activeSets.GetMember(round, addr)
	if err != nil {
		return false, err
	}
	return member.Active, nil
}

// PoolFirst returns the top-stake candidate.
func (m *Manager) PoolFirst() (magic.Address, error) { return m.pool.First() }

// PoolNext returns the candidate after addr.
func (m *Manager) PoolNext(addr magic.Address) (magic.Address, error) { return m.pool.Next(addr) }

// PoolSize returns the candidate count.
func (m *Manager) PoolSize() (uint64, error) { return m.pool.Size() }

// PoolMaxSize returns the candidate pool capacity.
func (m *Manager) PoolMaxSize() (uint64, error) { return m.pool.MaxSize() }

// PoolStake returns addr's candidate pool key.
func (m *Manager) PoolStake(addr magic.Address) (*big.Int, error) { return m.pool.Key(addr) }

// resign removes addr from the candidate pool and clears its membership
// in the current round's active set.
func (m *Manager) resign(addr magic.Address) error {
	contained, err := m.pool.Contains(addr)
	if err != nil {
		return err
	}
	if !contained {
		return nil
	}
	if err := m.pool.Remove(addr); err != nil {
		return err
	}
	round, err := m.clock.CurrentRound()
	if err != nil {
		return err
	}
	member, err := m.activeSets.GetMember(round, addr)
	if err != nil {
		return err
	}
	if member.Active {
		member.Active = false
		if err := m.activeSets.SaveMember(round, addr, member); err != nil {
			return err
		}
		set, err := m.activeSets.Get(round)
		if err != nil {
			return err
		}
		set.TotalStake.Sub(set.TotalStake, member.Stake)
		if err := m.activeSets.Save(round, set); err != nil {
			return err
		}
	}
	m.queue("EnablerResigned", EnablerResigned{Enabler: addr})
	logger.Info("enabler resigned", "enabler", addr)
	return nil
}

// delegatorCache keeps one in-memory record per address during an
// operation, so that aliased reads (a caller that is also the delegate)
// observe earlier writes.
type delegatorCache struct {
	svc   *delegator.Service
	recs  map[magic.Address]*delegator.Delegator
	order []magic.Address
}

func (m *Manager) newDelegatorCache() *delegatorCache {
	return &delegatorCache{
		svc:  m.delegators,
		recs: make(map[magic.Address]*delegator.Delegator),
	}
}

func (c *delegatorCache) get(addr magic.Address) (*delegator.Delegator, error) {
	if d, ok := c.recs[addr]; ok {
		return d, nil
	}
	d, err := c.svc.Get(addr)
	if err != nil {
		return nil, err
	}
	c.recs[addr] = d
	c.order = append(c.order, addr)
	return d, nil
}

func (c *delegatorCache) flush() error {
	for _, addr := range c.order {
		if err := c.svc.Save(addr, c.recs[addr]); err != nil {
			return err
		}
	}
	return nil
}
