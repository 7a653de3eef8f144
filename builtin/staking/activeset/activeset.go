// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package activeset stores the per-round snapshot of selected enablers.
// A round's set is written once when the round is initialized and is
// read-only afterwards, except that slashing or resignation clears a
// member.
package activeset

import (
	"encoding/binary"
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	slotSets    = magic.BytesToBytes32([]byte("staking-active-sets"))
	slotMembers = magic.BytesToBytes32([]byte("staking-active-members"))
)

// Set is the ordered selection for one round, largest stake first.
type Set struct {
	Enablers   []magic.Address
	TotalStake *big.Int
}

// Member is one enabler's frozen position in a round's set.
type Member struct {
	Stake  *big.Int
	Active bool // cleared by slashing or resignation
}

type roundKey uint64

func (k roundKey) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}

type memberKey struct {
	round   uint64
	enabler magic.Address
}

func (k memberKey) Bytes() []byte {
	b := binary.BigEndian.AppendUint64(make([]byte, 0, 28), k.round)
	return append(b, k.enabler.Bytes()...)
}

// Service persists active sets.
type Service struct {
	sets    *solidity.Mapping[roundKey, *Set]
	members *solidity.Mapping[memberKey, *Member]
}

// NewService creates a new instance.
func NewService(addr magic.Address, st *state.State) *Service {
	context := solidity.NewContext(addr, st, nil)
	return &Service{
		sets:    solidity.NewMapping[roundKey, *Set](context, slotSets),
		members: solidity.NewMapping[memberKey, *Member](context, slotMembers),
	}
}

// Get loads the set for a round. An uninitialized round yields an empty
// set.
func (s *Service) Get(round uint64) (*Set, error) {
	set, err := s.sets.Get(roundKey(round))
	if err != nil {
		return nil, err
	}
	if set.TotalStake == nil {
		set.TotalStake = new(big.Int)
	}
	return set, nil
}

// Save writes the set for a round.
func (s *Service) Save(round uint64, set *Set) error {
	has, err := s.sets.Has(roundKey(round))
	if err != nil {
		return err
	}
	return s.sets.Set(roundKey(round), set, !has)
}

// GetMember loads one enabler's position in a round's set. Enablers that
// were not selected read back inactive with zero stake.
func (s *Service) GetMember(round uint64, enabler magic.Address) (*Member, error) {
	m, err := s.members.Get(memberKey{round, enabler})
	if err != nil {
		return nil, err
	}
	if m.Stake == nil {
		m.Stake = new(big.Int)
	}
	return m, nil
}

// SaveMember writes one enabler's position in a round's set.
func (s *Service) SaveMember(round uint64, enabler magic.Address, m *Member) error {
	has, err := s.members.Has(memberKey{round, enabler})
	if err != nil {
		return err
	}
	return s.members.Set(memberKey{round, enabler}, m, !has)
}
