// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sortedpool

import (
	"math/big"

	"github.com/magic-network/magic-protocol/magic"
)

// node is a pool member as stored. A node with a nil key does not exist;
// stored nodes always carry a positive key.
type node struct {
	Key  *big.Int
	Prev *magic.Address `rlp:"nil"`
	Next *magic.Address `rlp:"nil"`
}

func (n *node) exists() bool {
	return n != nil && n.Key != nil && n.Key.Sign() > 0
}

func (n *node) prev() magic.Address {
	if n.Prev == nil {
		return magic.Address{}
	}
	return *n.Prev
}

func (n *node) next() magic.Address {
	if n.Next == nil {
		return magic.Address{}
	}
	return *n.Next
}

func addrPtr(addr magic.Address) *magic.Address {
	if addr.IsZero() {
		return nil
	}
	return &addr
}
