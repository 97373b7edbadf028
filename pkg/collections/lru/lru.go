// Package lru implements the bounded recency cache described in spec section
// 4.3: a doubly-linked recency list threaded through an open-addressed index
// table, so Get/Insert/evict are O(1) without reallocating.
//
// This is the Go translation of zenoh-pico's lru_cache.c
// (_examples/original_source/src/collections/lru_cache.c). The C
// implementation stores intrusive list nodes directly inside the index
// table's cells and links them with raw pointers; a backward-shift table
// move therefore has to fix up the moved node's neighbors. Go cannot hand
// out stable pointers into a slice that gets compacted, so this port keeps
// the same shape but threads the list through int32 slot indices instead of
// pointers — exactly the substitution spec section 9's design notes call
// out ("use indices into the index table rather than raw pointers").
package lru

import (
	"github.com/marmos91/zenopico/pkg/zerr"
)

// oversizeNum/Den is the 1.2x index table oversizing from spec section 4.3
// (capacity * 1.2, integer truncation).
const (
	oversizeNum = 12
	oversizeDen = 10
)

const none = int32(-1)

type node[K comparable, V any] struct {
	key        K
	val        V
	occupied   bool
	prev, next int32
}

// Cache is a bounded, capacity-limited LRU cache. K is the lookup key
// derived from a cached value (e.g. a resolver cache key); V is the cached
// payload.
type Cache[K comparable, V any] struct {
	capacity int
	slotLen  int32
	slots    []node[K, V]
	head     int32
	tail     int32
	length   int
	hash     func(K) uint64
}

// New creates a Cache bounded at capacity entries, using hash to place keys
// in the index table. capacity must be > 0.
func New[K comparable, V any](capacity int, hash func(K) uint64) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, zerr.New(zerr.InvalidInput, "lru: capacity must be > 0")
	}
	return &Cache[K, V]{
		capacity: capacity,
		slotLen:  int32(capacity * oversizeNum / oversizeDen),
		head:     none,
		tail:     none,
		hash:     hash,
	}, nil
}

func (c *Cache[K, V]) ensureAllocated() {
	if c.slots == nil {
		c.slots = make([]node[K, V], c.slotLen)
		for i := range c.slots {
			c.slots[i].prev = none
			c.slots[i].next = none
		}
	}
}

func (c *Cache[K, V]) indexOf(key K) int32 {
	return int32(c.hash(key) % uint64(c.slotLen))
}

func (c *Cache[K, V]) find(key K) int32 {
	if c.slots == nil {
		return none
	}
	idx := c.indexOf(key)
	for i := int32(0); i < c.slotLen; i++ {
		s := &c.slots[idx]
		if !s.occupied {
			return none
		}
		if s.key == key {
			return idx
		}
		idx++
		if idx >= c.slotLen {
			idx = 0
		}
	}
	return none
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int { return c.length }

// unlink removes idx from the recency list without touching the index
// table.
func (c *Cache[K, V]) unlink(idx int32) {
	s := &c.slots[idx]
	if s.prev != none {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != none {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev, s.next = none, none
}

// pushFront inserts idx at the head (most-recently-used position).
func (c *Cache[K, V]) pushFront(idx int32) {
	s := &c.slots[idx]
	s.prev = none
	s.next = c.head
	if c.head != none {
		c.slots[c.head].prev = idx
	}
	c.head = idx
	if c.tail == none {
		c.tail = idx
	}
}

// Get looks up key and, on a hit, promotes it to most-recently-used in O(1).
func (c *Cache[K, V]) Get(key K) (V, bool) {
	idx := c.find(key)
	if idx == none {
		var zero V
		return zero, false
	}
	c.unlink(idx)
	c.pushFront(idx)
	return c.slots[idx].val, true
}

func (c *Cache[K, V]) insertIntoIndex(key K, val V) int32 {
	idx := c.indexOf(key)
	for {
		if !c.slots[idx].occupied {
			c.slots[idx] = node[K, V]{key: key, val: val, occupied: true, prev: none, next: none}
			return idx
		}
		idx++
		if idx >= c.slotLen {
			idx = 0
		}
	}
}

// backwardShift repairs the index table's probe chain after the slot at
// emptyIdx was cleared, the same algorithm as hashmap.Map.Remove, except it
// must also fix up the recency list: a slot relocated in-place still needs
// its old neighbors' prev/next updated to the new index (spec section 4.3:
// "the list still points into the table, so in-place table moves must
// update the neighbors' prev/next").
func (c *Cache[K, V]) backwardShift(emptyIdx int32) {
	del := emptyIdx
	idx := emptyIdx
	for {
		idx++
		if idx >= c.slotLen {
			idx = 0
		}
		s := &c.slots[idx]
		if !s.occupied {
			return
		}
		natural := c.indexOf(s.key)
		var shouldMove bool
		if idx > del {
			shouldMove = natural <= del || natural > idx
		} else {
			shouldMove = natural <= del && natural > idx
		}
		if shouldMove {
			moved := *s
			c.slots[del] = moved
			*s = node[K, V]{prev: none, next: none}
			c.relinkNeighbors(moved, del)
			del = idx
		}
	}
}

// relinkNeighbors updates the prev/next pointers of a moved node's
// neighbors (and head/tail if it was an endpoint) to reference its new slot
// index, newIdx.
func (c *Cache[K, V]) relinkNeighbors(moved node[K, V], newIdx int32) {
	if moved.prev != none {
		c.slots[moved.prev].next = newIdx
	} else {
		c.head = newIdx
	}
	if moved.next != none {
		c.slots[moved.next].prev = newIdx
	} else {
		c.tail = newIdx
	}
}

func (c *Cache[K, V]) evictTail(onEvict func(K, V)) {
	idx := c.tail
	s := c.slots[idx]
	c.unlink(idx)
	if onEvict != nil {
		onEvict(s.key, s.val)
	}
	c.slots[idx] = node[K, V]{prev: none, next: none}
	c.length--
	c.backwardShift(idx)
}

// Insert adds value under key, evicting the least-recently-used entry (via
// onEvict, which may be nil) if the cache is already at capacity. The
// caller is responsible for not inserting a key already present (spec
// section 4.3: "insert... copies the value in (assuming not already
// present")).
func (c *Cache[K, V]) Insert(key K, val V, onEvict func(K, V)) {
	c.ensureAllocated()
	if c.length == c.capacity {
		c.evictTail(onEvict)
	}
	idx := c.insertIntoIndex(key, val)
	c.pushFront(idx)
	c.length++
}

// Clear empties the cache, calling onClear (if non-nil) for every evicted
// value.
func (c *Cache[K, V]) Clear(onClear func(K, V)) {
	if onClear != nil {
		for idx := c.head; idx != none; {
			next := c.slots[idx].next
			onClear(c.slots[idx].key, c.slots[idx].val)
			idx = next
		}
	}
	for i := range c.slots {
		c.slots[i] = node[K, V]{prev: none, next: none}
	}
	c.head, c.tail = none, none
	c.length = 0
}
