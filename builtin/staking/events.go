// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/event"

	"github.com/magic-network/magic-protocol/magic"
)

// Event is a notification for off-chain indexers. Events for an operation
// are published only after the operation has committed.
type Event struct {
	Name string
	Data any
}

type (
	// EnablerUpdate records new pending rate parameters.
	EnablerUpdate struct {
		Enabler         magic.Address
		PendingRewardCut,
		PendingFeeShare,
		PendingPricePerSegment *big.Int
		Registered bool
	}

	// EnablerEvicted records a minimum-stake member dropped for a
	// larger newcomer.
	EnablerEvicted struct {
		Enabler magic.Address
	}

	// EnablerResigned records removal from the candidate pool.
	EnablerResigned struct {
		Enabler magic.Address
	}

	// EnablerSlashed records a slash, including the no-op case where
	// nothing was left to slash.
	EnablerSlashed struct {
		Enabler      magic.Address
		Finder       magic.Address
		Penalty      *big.Int
		FinderReward *big.Int
	}

	// RewardMinted records a successful reward call.
	RewardMinted struct {
		Enabler magic.Address
		Amount  *big.Int
		Round   uint64
	}

	// Bonded records a bond, including re-delegations.
	Bonded struct {
		Delegator   magic.Address
		NewDelegate magic.Address
		OldDelegate magic.Address
		Additional  *big.Int
		Bonded      *big.Int
	}

	// Unbonded records a new unbonding lock.
	Unbonded struct {
		Delegator     magic.Address
		Delegate      magic.Address
		LockID        uint64
		Amount        *big.Int
		WithdrawRound uint64
	}

	// Rebonded records an unbonding lock reversed back into the bond.
	Rebonded struct {
		Delegator magic.Address
		Delegate  magic.Address
		LockID    uint64
		Amount    *big.Int
	}

	// StakeWithdrawn records a matured lock paid out.
	StakeWithdrawn struct {
		Delegator magic.Address
		LockID    uint64
		Amount    *big.Int
	}

	// FeesWithdrawn records a fee balance paid out.
	FeesWithdrawn struct {
		Delegator magic.Address
		Amount    *big.Int
	}

	// EarningsClaimed records a settled accrual span.
	EarningsClaimed struct {
		Delegator magic.Address
		Delegate  magic.Address
		Rewards   *big.Int
		Fees      *big.Int
		StartRound,
		EndRound uint64
	}

	// ParamUpdate records a governance parameter change.
	ParamUpdate struct {
		Param string
		Value *big.Int
	}
)

// SubscribeEvents subscribes ch to the manager's event stream.
func (m *Manager) SubscribeEvents(ch chan<- Event) event.Subscription {
	return m.feed.Subscribe(ch)
}

// queue stages an event for publication at commit time.
func (m *Manager) queue(name string, data any) {
	m.pending = append(m.pending, Event{Name: name, Data: data})
}

// publish flushes staged events to subscribers.
func (m *Manager) publish() {
	for _, ev := range m.pending {
		m.feed.Send(ev)
	}
	m.pending = nil
}

// discard drops staged events after a revert.
func (m *Manager) discard() {
	m.pending = nil
}
