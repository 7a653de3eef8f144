// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state manages the world state of the ledger: account balances of
// the staked asset plus per-contract raw storage, with save/revert
// checkpoints so an aborted operation leaves no trace.
package state

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// Source supplies the initial values of the state, e.g. a persisted
// snapshot. All values read through it are treated as the base layer
// under the checkpoint stack.
type Source interface {
	GetBalance(addr magic.Address) (*big.Int, bool, error)
	GetStorage(addr magic.Address, key magic.Bytes32) (rlp.RawValue, bool, error)
}

type (
	balanceKey magic.Address
	storageKey struct {
		addr magic.Address
		key  magic.Bytes32
	}
)

// State manages the world state.
type State struct {
	src Source
	sm  *stackedmap.StackedMap // keeps revisions of state
}

// New creates a state object backed by the given source.
func New(src Source) *State {
	state := State{src: src}
	state.sm = stackedmap.New(func(key any) (any, bool, error) {
		return state.srcGetter(key)
	})

	// initially has one stack depth
	state.sm.Push()
	return &state
}

// NewMem creates a state object backed by an empty in-memory source.
func NewMem() *State {
	return New(&memSource{})
}

// srcGetter implements stackedmap.MapGetter.
func (s *State) srcGetter(key any) (value any, exist bool, err error) {
	switch k := key.(type) {
	case balanceKey:
		bal, exist, err := s.src.GetBalance(magic.Address(k))
		if err != nil {
			return nil, false, err
		}
		if !exist {
			return &big.Int{}, true, nil
		}
		return bal, true, nil
	case storageKey:
		raw, exist, err := s.src.GetStorage(k.addr, k.key)
		if err != nil {
			return nil, false, err
		}
		if !exist {
			return rlp.RawValue(nil), true, nil
		}
		return raw, true, nil
	}
	panic(fmt.Errorf("unexpected state key type %+v", key))
}

// GetBalance returns the balance of the staked asset for the given address.
func (s *State) GetBalance(addr magic.Address) (*big.Int, error) {
	v, _, err := s.sm.Get(balanceKey(addr))
	if err != nil {
		return nil, &Error{err}
	}
	return v.(*big.Int), nil
}

// SetBalance sets the balance of the staked asset for the given address.
func (s *State) SetBalance(addr magic.Address, balance *big.Int) error {
	if balance.Sign() < 0 {
		return &Error{fmt.Errorf("negative balance for %v", addr)}
	}
	s.sm.Put(balanceKey(addr), balance)
	return nil
}

// GetStorage returns storage value for the given address and key.
func (s *State) GetStorage(addr magic.Address, key magic.Bytes32) (magic.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return magic.Bytes32{}, err
	}
	if len(raw) == 0 {
		return magic.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return magic.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// special case for rlp list, it should be customized storage value
		// return hash of raw data
		return magic.Blake2b(raw), nil
	}
	return magic.BytesToBytes32(content), nil
}

// SetStorage sets storage value for the given address and key.
func (s *State) SetStorage(addr magic.Address, key, value magic.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr magic.Address, key magic.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage sets storage value in rlp raw.
func (s *State) SetRawStorage(addr magic.Address, key magic.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// EncodeStorage sets storage value encoded by given enc method.
// An empty encoded value deletes the storage slot.
func (s *State) EncodeStorage(addr magic.Address, key magic.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage gets and decodes storage value.
func (s *State) DecodeStorage(addr magic.Address, key magic.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// memSource is an always-empty source.
type memSource struct{}

func (m *memSource) GetBalance(magic.Address) (*big.Int, bool, error) {
	return nil, false, nil
}

func (m *memSource) GetStorage(magic.Address, magic.Bytes32) (rlp.RawValue, bool, error) {
	return nil, false, nil
}
