// Copyright (c) 2025 The Magic Protocol developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap maintains maps in a stack.
// Each map inherits the key/value pairs of the map at the lower level.
// It acts as a map with save-restore/snapshot-revert manner.
package stackedmap

// StackedMap maintains maps in a stack.
type StackedMap struct {
	src            MapGetter
	mapStack       stack
	keyRevisionMap map[any]*stack
}

type level struct {
	kvs     map[any]any
	journal []*JournalEntry
}

func newLevel() *level {
	return &level{kvs: make(map[any]any)}
}

// JournalEntry entry of journal.
type JournalEntry struct {
	Key   any
	Value any
}

// MapGetter defines the getter method of the source map.
type MapGetter func(key any) (value any, exist bool, err error)

// New creates an instance of StackedMap.
// src acts as the source of data.
func New(src MapGetter) *StackedMap {
	return &StackedMap{
		src,
		stack{},
		make(map[any]*stack),
	}
}

// Depth returns depth of stack.
func (sm *StackedMap) Depth() int {
	return len(sm.mapStack)
}

// Push pushes a new map on the stack.
// It returns stack depth before push.
func (sm *StackedMap) Push() int {
	sm.mapStack.push(newLevel())
	return len(sm.mapStack) - 1
}

// Pop pops the map at the top of the stack.
// It reverts all Put operations since the last Push.
func (sm *StackedMap) Pop() {
	top := sm.mapStack.top().(*level)
	for key := range top.kvs {
		revs := sm.keyRevisionMap[key]
		revs.pop()
		if len(*revs) == 0 {
			delete(sm.keyRevisionMap, key)
		}
	}
	sm.mapStack.pop()
}

// PopTo pops maps until stack depth reaches depth.
func (sm *StackedMap) PopTo(depth int) {
	for len(sm.mapStack) > depth {
		sm.Pop()
	}
}

// Get gets the value for the given key.
// The second return value indicates whether the given key is found.
func (sm *StackedMap) Get(key any) (any, bool, error) {
	if revs, ok := sm.keyRevisionMap[key]; ok {
		lvl := sm.mapStack[revs.top().(int)].(*level)
		if v, ok := lvl.kvs[key]; ok {
			return v, true, nil
		}
	}
	return sm.src(key)
}

// Put puts a key value pair into the map at the stack top.
// It will panic if the stack is empty.
func (sm *StackedMap) Put(key, value any) {
	top := sm.mapStack.top().(*level)
	top.kvs[key] = value
	top.journal = append(top.journal, &JournalEntry{Key: key, Value: value})

	// records key revision for fast access
	rev := len(sm.mapStack) - 1
	if revs, ok := sm.keyRevisionMap[key]; ok {
		revs.push(rev)
	} else {
		sm.keyRevisionMap[key] = &stack{rev}
	}
}

// Journal traverses journal entries of all Put operations.
// The traversal abandons if the callback returns false.
func (sm *StackedMap) Journal(cb func(key, value any) bool) {
	for _, lvl := range sm.mapStack {
		for _, entry := range lvl.(*level).journal {
			if !cb(entry.Key, entry.Value) {
				return
			}
		}
	}
}

// stack ops

type stack []any

func (s *stack) pop() {
	*s = (*s)[:len(*s)-1]
}

func (s *stack) push(v any) {
	*s = append(*s, v)
}

func (s stack) top() any {
	return s[len(s)-1]
}
