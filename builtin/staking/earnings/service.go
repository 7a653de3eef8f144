// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package earnings

import (
	"encoding/binary"

	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var slotPools = magic.BytesToBytes32([]byte("earnings-pools"))

// poolKey addresses one enabler's pool for one round.
type poolKey struct {
	enabler magic.Address
	round   uint64
}

func (k poolKey) Bytes() []byte {
	b := make([]byte, 0, 28)
	b = append(b, k.enabler.Bytes()...)
	b = binary.BigEndian.AppendUint64(b, k.round)
	return b
}

// Service persists earnings pools. Records are append-only: a pool is
// written once at round start and only its balances change afterwards.
type Service struct {
	pools *solidity.Mapping[poolKey, *Pool]
}

// NewService creates a new instance.
func NewService(addr magic.Address, st *state.State) *Service {
	context := solidity.NewContext(addr, st, nil)
	return &Service{
		pools: solidity.NewMapping[poolKey, *Pool](context, slotPools),
	}
}

// Get loads the pool for (enabler, round). A round the enabler was never
// active in yields an empty pool with Exists false.
func (s *Service) Get(enabler magic.Address, round uint64) (*Pool, bool, error) {
	key := poolKey{enabler, round}
	exists, err := s.pools.Has(key)
	if err != nil {
		return nil, false, err
	}
	pool, err := s.pools.Get(key)
	if err != nil {
		return nil, false, err
	}
	pool.normalize()
	return pool, exists, nil
}

// Save writes the pool for (enabler, round).
func (s *Service) Save(enabler magic.Address, round uint64, pool *Pool) error {
	key := poolKey{enabler, round}
	exists, err := s.pools.Has(key)
	if err != nil {
		return err
	}
	return s.pools.Set(key, pool, !exists)
}
