// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sortedpool implements a bounded doubly linked list of candidates
// kept in strictly descending key order. Callers may pass position hints
// to make insertion O(1); stale or wrong hints degrade to a linear scan
// from the nearest surviving anchor.
package sortedpool

import (
	"math/big"

	"github.com/magic-network/magic-protocol/builtin/reverts"
	"github.com/magic-network/magic-protocol/builtin/solidity"
	"github.com/magic-network/magic-protocol/magic"
	"github.com/magic-network/magic-protocol/state"
)

var (
	slotHead    = magic.BytesToBytes32([]byte("pool-head"))
	slotTail    = magic.BytesToBytes32([]byte("pool-tail"))
	slotSize    = magic.BytesToBytes32([]byte("pool-size"))
	slotMaxSize = magic.BytesToBytes32([]byte("pool-max-size"))
	slotNodes   = magic.BytesToBytes32([]byte("pool-nodes"))
)

// Pool implements native methods of the sorted candidate pool.
type Pool struct {
	nodes   *solidity.Mapping[magic.Address, *node]
	head    *solidity.Address
	tail    *solidity.Address
	size    *solidity.Uint256
	maxSize *solidity.Uint256
}

// New creates a new instance.
func New(addr magic.Address, st *state.State) *Pool {
	context := solidity.NewContext(addr, st, nil)
	return &Pool{
		nodes:   solidity.NewMapping[magic.Address, *node](context, slotNodes),
		head:    solidity.NewAddress(context, slotHead),
		tail:    solidity.NewAddress(context, slotTail),
		size:    solidity.NewUint256(context, slotSize),
		maxSize: solidity.NewUint256(context, slotMaxSize),
	}
}

// SetMaxSize raises the pool capacity. The capacity can only grow, so that
// existing members are never silently dropped.
func (p *Pool) SetMaxSize(size uint64) error {
	current, err := p.MaxSize()
	if err != nil {
		return err
	}
	if size <= current {
		return reverts.New("new max size must be greater than old max size")
	}
	return p.maxSize.Set(new(big.Int).SetUint64(size))
}

// MaxSize returns the pool capacity.
func (p *Pool) MaxSize() (uint64, error) {
	size, err := p.maxSize.Get()
	if err != nil {
		return 0, err
	}
	return size.Uint64(), nil
}

// Size returns the number of members.
func (p *Pool) Size() (uint64, error) {
	size, err := p.size.Get()
	if err != nil {
		return 0, err
	}
	return size.Uint64(), nil
}

// IsFull returns whether the pool has reached capacity.
func (p *Pool) IsFull() (bool, error) {
	size, err := p.Size()
	if err != nil {
		return false, err
	}
	maxSize, err := p.MaxSize()
	if err != nil {
		return false, err
	}
	return size >= maxSize, nil
}

// IsEmpty returns whether the pool has no members.
func (p *Pool) IsEmpty() (bool, error) {
	size, err := p.Size()
	if err != nil {
		return false, err
	}
	return size == 0, nil
}

// Contains returns whether id is a member.
func (p *Pool) Contains(id magic.Address) (bool, error) {
	n, err := p.nodes.Get(id)
	if err != nil {
		return false, err
	}
	return n.exists(), nil
}

// Key returns the member's key, or zero if id is not a member.
func (p *Pool) Key(id magic.Address) (*big.Int, error) {
	n, err := p.nodes.Get(id)
	if err != nil {
		return nil, err
	}
	if !n.exists() {
		return new(big.Int), nil
	}
	return n.Key, nil
}

// First returns the member with the largest key, or the zero address if
// the pool is empty.
func (p *Pool) First() (magic.Address, error) {
	return p.head.Get()
}

// Last returns the member with the smallest key, or the zero address if
// the pool is empty.
func (p *Pool) Last() (magic.Address, error) {
	return p.tail.Get()
}

// Next returns the member after id, or the zero address at the tail.
func (p *Pool) Next(id magic.Address) (magic.Address, error) {
	n, err := p.nodes.Get(id)
	if err != nil {
		return magic.Address{}, err
	}
	return n.next(), nil
}

// Prev returns the member before id, or the zero address at the head.
func (p *Pool) Prev(id magic.Address) (magic.Address, error) {
	n, err := p.nodes.Get(id)
	if err != nil {
		return magic.Address{}, err
	}
	return n.prev(), nil
}

// Insert adds id with the given key. prevHint and nextHint optionally name
// the expected neighbors; a zero address means no hint.
func (p *Pool) Insert(id magic.Address, key *big.Int, prevHint, nextHint magic.Address) error {
	full, err := p.IsFull()
	if err != nil {
		return err
	}
	if full {
		return reverts.New("pool is full")
	}
	if id.IsZero() {
		return reverts.New("zero identity")
	}
	if key == nil || key.Sign() == 0 {
		return reverts.New("key must be positive")
	}
	contained, err := p.Contains(id)
	if err != nil {
		return err
	}
	if contained {
		return reverts.New("already in pool")
	}

	prev, next := prevHint, nextHint
	valid, err := p.ValidInsertPosition(key, prev, next)
	if err != nil {
		return err
	}
	if !valid {
		if prev, next, err = p.findInsertPosition(key, prev, next); err != nil {
			return err
		}
	}

	if err := p.link(id, key, prev, next); err != nil {
		return err
	}
	return p.size.Add(big.NewInt(1))
}

// Remove unlinks id from the pool.
func (p *Pool) Remove(id magic.Address) error {
	n, err := p.nodes.Get(id)
	if err != nil {
		return err
	}
	if !n.exists() {
		return reverts.New("not in pool")
	}

	if n.Prev == nil {
		p.head.Set(n.Next)
	} else {
		prevNode, err := p.nodes.Get(*n.Prev)
		if err != nil {
			return err
		}
		prevNode.Next = n.Next
		if err := p.nodes.Set(*n.Prev, prevNode, false); err != nil {
			return err
		}
	}
	if n.Next == nil {
		p.tail.Set(n.Prev)
	} else {
		nextNode, err := p.nodes.Get(*n.Next)
		if err != nil {
			return err
		}
		nextNode.Prev = n.Prev
		if err := p.nodes.Set(*n.Next, nextNode, false); err != nil {
			return err
		}
	}

	if err := p.nodes.Delete(id); err != nil {
		return err
	}
	return p.size.Sub(big.NewInt(1))
}

// UpdateKey moves id to the position matching newKey. A zero newKey
// removes id from the pool.
func (p *Pool) UpdateKey(id magic.Address, newKey *big.Int, prevHint, nextHint magic.Address) error {
	if err := p.Remove(id); err != nil {
		return err
	}
	if newKey == nil || newKey.Sign() == 0 {
		return nil
	}
	return p.Insert(id, newKey, prevHint, nextHint)
}

// ValidInsertPosition returns whether (prev, next) is a valid adjacency
// pair bracketing key.
func (p *Pool) ValidInsertPosition(key *big.Int, prev, next magic.Address) (bool, error) {
	if prev.IsZero() && next.IsZero() {
		return p.IsEmpty()
	}
	if prev.IsZero() {
		// inserting before the head
		head, err := p.head.Get()
		if err != nil {
			return false, err
		}
		nextKey, err := p.Key(next)
		if err != nil {
			return false, err
		}
		return head == next && key.Cmp(nextKey) >= 0, nil
	}
	if next.IsZero() {
		// inserting after the tail
		tail, err := p.tail.Get()
		if err != nil {
			return false, err
		}
		prevKey, err := p.Key(prev)
		if err != nil {
			return false, err
		}
		return tail == prev && key.Cmp(prevKey) <= 0, nil
	}
	prevNode, err := p.nodes.Get(prev)
	if err != nil {
		return false, err
	}
	if !prevNode.exists() || prevNode.next() != next {
		return false, nil
	}
	nextKey, err := p.Key(next)
	if err != nil {
		return false, err
	}
	return prevNode.Key.Cmp(key) >= 0 && key.Cmp(nextKey) >= 0, nil
}

// findInsertPosition repairs bad hints then scans from the best surviving
// anchor for the true insertion point.
func (p *Pool) findInsertPosition(key *big.Int, prev, next magic.Address) (magic.Address, magic.Address, error) {
	if !prev.IsZero() {
		prevNode, err := p.nodes.Get(prev)
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		if !prevNode.exists() || key.Cmp(prevNode.Key) > 0 {
			// prev hint gone or now on the wrong side of key
			prev = magic.Address{}
		}
	}
	if !next.IsZero() {
		nextNode, err := p.nodes.Get(next)
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		if !nextNode.exists() || key.Cmp(nextNode.Key) < 0 {
			next = magic.Address{}
		}
	}
	switch {
	case prev.IsZero() && next.IsZero():
		head, err := p.head.Get()
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		return p.descend(key, head)
	case prev.IsZero():
		return p.ascend(key, next)
	default:
		return p.descend(key, prev)
	}
}

// descend walks toward the tail starting at start until a valid position
// for key is found.
func (p *Pool) descend(key *big.Int, start magic.Address) (magic.Address, magic.Address, error) {
	head, err := p.head.Get()
	if err != nil {
		return magic.Address{}, magic.Address{}, err
	}
	startKey, err := p.Key(start)
	if err != nil {
		return magic.Address{}, magic.Address{}, err
	}
	if head == start && key.Cmp(startKey) >= 0 {
		return magic.Address{}, start, nil
	}

	prev := start
	for !prev.IsZero() {
		next, err := p.Next(prev)
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		valid, err := p.ValidInsertPosition(key, prev, next)
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		if valid {
			return prev, next, nil
		}
		prev = next
	}
	return magic.Address{}, magic.Address{}, reverts.New("no insert position found")
}

// ascend walks toward the head starting at start until a valid position
// for key is found.
func (p *Pool) ascend(key *big.Int, start magic.Address) (magic.Address, magic.Address, error) {
	tail, err := p.tail.Get()
	if err != nil {
		return magic.Address{}, magic.Address{}, err
	}
	startKey, err := p.Key(start)
	if err != nil {
		return magic.Address{}, magic.Address{}, err
	}
	if tail == start && key.Cmp(startKey) <= 0 {
		return start, magic.Address{}, nil
	}

	next := start
	for !next.IsZero() {
		prev, err := p.Prev(next)
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		valid, err := p.ValidInsertPosition(key, prev, next)
		if err != nil {
			return magic.Address{}, magic.Address{}, err
		}
		if valid {
			return prev, next, nil
		}
		next = prev
	}
	return magic.Address{}, magic.Address{}, reverts.New("no insert position found")
}

func (p *Pool) link(id magic.Address, key *big.Int, prev, next magic.Address) error {
	n := &node{Key: key, Prev: addrPtr(prev), Next: addrPtr(next)}

	if prev.IsZero() {
		p.head.Set(&id)
	} else {
		prevNode, err := p.nodes.Get(prev)
		if err != nil {
			return err
		}
		prevNode.Next = &id
		if err := p.nodes.Set(prev, prevNode, false); err != nil {
			return err
		}
	}
	if next.IsZero() {
		p.tail.Set(&id)
	} else {
		nextNode, err := p.nodes.Get(next)
		if err != nil {
			return err
		}
		nextNode.Prev = &id
		if err := p.nodes.Set(next, nextNode, false); err != nil {
			return err
		}
	}
	return p.nodes.Set(id, n, true)
}
