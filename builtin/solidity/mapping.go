// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/magic-network/magic-protocol/magic"
)

// Key is anything that can address a mapping entry.
type Key interface {
	Bytes() []byte
}

// Mapping is a key/value storage abstraction, similar to a mapping in a
// smart contract: each entry lives at a slot derived from the key and the
// mapping's base position.
type Mapping[K Key, V any] struct {
	context *Context
	basePos magic.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos magic.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) magic.Bytes32 {
	return magic.Blake2b(key.Bytes(), m.basePos.Bytes())
}

// Get returns the value stored under key, or the zero value of V if the
// entry was never written.
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	err = m.context.state.DecodeStorage(m.context.address, m.position(key), func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		m.context.UseGas(toWordSize(len(raw)) * SloadGas)
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set stores value under key. newValue hints whether the slot is being
// written for the first time, which affects the metered cost only.
func (m *Mapping[K, V]) Set(key K, value V, newValue bool) error {
	return m.context.state.EncodeStorage(m.context.address, m.position(key), func() ([]byte, error) {
		val, err := rlp.EncodeToBytes(value)
		if err != nil {
			return nil, err
		}
		if newValue {
			m.context.UseGas(toWordSize(len(val)) * SstoreSetGas)
		} else {
			m.context.UseGas(toWordSize(len(val)) * SstoreResetGas)
		}
		return val, nil
	})
}

// Delete clears the entry under key.
func (m *Mapping[K, V]) Delete(key K) error {
	m.context.UseGas(SstoreResetGas)
	return m.context.state.EncodeStorage(m.context.address, m.position(key), func() ([]byte, error) {
		return nil, nil
	})
}

// Has returns whether an entry exists under key.
func (m *Mapping[K, V]) Has(key K) (bool, error) {
	raw, err := m.context.state.GetRawStorage(m.context.address, m.position(key))
	if err != nil {
		return false, err
	}
	return len(raw) > 0, nil
}
