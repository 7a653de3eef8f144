// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package enabler stores the per-enabler rate parameters. An enabler sets
// pending values at will; they become the effective ones when the next
// round's active set is computed.
package enabler

import (
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var slotEnablers = magic.BytesToBytes32([]byte("staking-enablers"))

// Enabler holds one enabler's rate parameters and reward bookkeeping.
type Enabler struct {
	LastRewardRound uint64 // last round reward() succeeded in

	// effective this round, committed from the pending values
	RewardCut       *big.Int
	FeeShare        *big.Int
	PricePerSegment *big.Int

	// requested for the next active-set computation
	PendingRewardCut       *big.Int
	PendingFeeShare        *big.Int
	PendingPricePerSegment *big.Int
}

func (e *Enabler) normalize() {
	for _, f := range []**big.Int{
		&e.RewardCut, &e.FeeShare, &e.PricePerSegment,
		&e.PendingRewardCut, &e.PendingFeeShare, &e.PendingPricePerSegment,
	} {
		if *f == nil {
			*f = new(big.Int)
		}
	}
}

// CommitPendingRates makes the pending parameters effective.
func (e *Enabler) CommitPendingRates() {
	e.RewardCut = new(big.Int).Set(e.PendingRewardCut)
	e.FeeShare = new(big.Int).Set(e.PendingFeeShare)
	e.PricePerSegment = new(big.Int).Set(e.PendingPricePerSegment)
}

// Service persists enabler records.
type Service struct {
	enablers *solidity.Mapping[magic.Address, *Enabler]
}

// NewService creates a new instance.
func NewService(addr magic.Address, st *state.State) *Service {
	context := solidity.NewContext(addr, st, nil)
	return &Service{
		enablers: solidity.NewMapping[magic.Address, *Enabler](context, slotEnablers),
	}
}

// Get loads the record for addr, a zeroed one if never written.
func (s *Service) Get(addr magic.Address) (*Enabler, error) {
	e, err := s.enablers.Get(addr)
	if err != nil {
		return nil, err
	}
	e.normalize()
	return e, nil
}

// Save writes the record for addr.
func (s *Service) Save(addr magic.Address, e *Enabler) error {
	has, err := s.enablers.Has(addr)
	if err != nil {
		return err
	}
	return s.enablers.Set(addr, e, !has)
}
