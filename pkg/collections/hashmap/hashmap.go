// Package hashmap implements the open-addressed, linearly-probed map that
// backs every declaration table in pkg/session (resources, subscribers,
// publishers, queryables, tokens). The resolver cache in pkg/keyexpr uses
// pkg/collections/lru instead.
//
// This is the Go translation of zenoh-pico's dict.c: a single generic
// container standing in for what the C source expresses as a family of
// macro-expanded per-type maps (see _examples/original_source/src/collections
// /dict.c). The all-0xFF sentinel-key invariant from the C implementation is
// preserved as a precondition enforced on Insert (Key.Bytes() must not be
// all 0xFF); internally, Go's zero-cost generics let us track occupancy with
// a plain bool instead of scanning key bytes for the sentinel pattern on
// every probe.
package hashmap

import (
	"math/bits"

	"github.com/marmos91/zenopico/pkg/zerr"
)

// Key constrains hashmap keys to comparable types carrying a canonical byte
// representation, used only to validate the "no all-0xFF key" precondition.
type Key interface {
	comparable
	Bytes() []byte
}

const defaultCapacity = 16

// expandLoadFactorNum/Den is the 90% expand threshold from spec section 4.2:
// expand once len*10 >= capacity*9.
const (
	expandLoadFactorNum = 9
	expandLoadFactorDen = 10
)

type slot[K Key, V any] struct {
	key      K
	val      V
	occupied bool
}

// Map is an open-addressed hash map with linear probing and backward-shift
// deletion (no tombstones).
type Map[K Key, V any] struct {
	capacity  uint32
	resizable bool
	length    uint32
	slots     []slot[K, V]
}

func isReservedKey[K Key](k K) bool {
	b := k.Bytes()
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}

func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

// New creates a Map with the given initial capacity (rounded up to the next
// power of two; zero means defaultCapacity). When resizable is false, Insert
// fails with zerr.Overflow once the table is full instead of growing.
func New[K Key, V any](capacity uint32, resizable bool) *Map[K, V] {
	if capacity == 0 {
		capacity = defaultCapacity
	}
	capacity = nextPow2(capacity)
	return &Map[K, V]{
		capacity:  capacity,
		resizable: resizable,
		slots:     make([]slot[K, V], capacity),
	}
}

// Len returns the number of entries currently stored.
func (m *Map[K, V]) Len() int { return int(m.length) }

func fnv1a(b []byte) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	return h
}

func (m *Map[K, V]) indexOf(key K) uint32 {
	return uint32(fnv1a(key.Bytes())) & (m.capacity - 1)
}

// Get returns the value stored for key, if present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	idx := m.indexOf(key)
	for i := uint32(0); i < m.capacity; i++ {
		s := &m.slots[idx]
		if !s.occupied {
			var zero V
			return zero, false
		}
		if s.key == key {
			return s.val, true
		}
		idx = (idx + 1) & (m.capacity - 1)
	}
	var zero V
	return zero, false
}

// Has reports whether key is present, without exposing the value.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Map[K, V]) expand() error {
	old := m.slots
	newCap := m.capacity * 2
	m.slots = make([]slot[K, V], newCap)
	m.capacity = newCap
	m.length = 0
	for i := range old {
		if old[i].occupied {
			// Reinsertion into a freshly allocated, larger table cannot fail
			// (spec 4.2: "the rehash step itself cannot fail after the new
			// buffer is allocated").
			_ = m.insert(old[i].key, old[i].val)
		}
	}
	return nil
}

func (m *Map[K, V]) insert(key K, val V) error {
	idx := m.indexOf(key)
	for {
		s := &m.slots[idx]
		if !s.occupied {
			s.key = key
			s.val = val
			s.occupied = true
			m.length++
			return nil
		}
		if s.key == key {
			s.val = val
			return nil
		}
		idx = (idx + 1) & (m.capacity - 1)
	}
}

// Insert adds or replaces the value for key. It rejects the reserved
// all-0xFF key (spec section 3: "HashMap entry... the all-0xFF key is
// reserved and must be rejected by insert"), and fails with zerr.Overflow on
// a full non-resizable table.
func (m *Map[K, V]) Insert(key K, val V) error {
	if isReservedKey(key) {
		return zerr.New(zerr.InvalidInput, "hashmap: key bytes are all 0xFF (reserved sentinel)")
	}
	if m.length*expandLoadFactorDen >= m.capacity*expandLoadFactorNum {
		if m.resizable {
			if err := m.expand(); err != nil {
				return err
			}
		} else if m.length == m.capacity {
			return zerr.New(zerr.Overflow, "hashmap: table full")
		}
	}
	return m.insert(key, val)
}

// Remove deletes key, repairing the probe chain by backward shift so that
// subsequent lookups for entries displaced by the deleted slot still
// succeed without a tombstone scan (spec section 4.2).
func (m *Map[K, V]) Remove(key K) (V, bool) {
	idx := m.indexOf(key)
	var zero V
	for i := uint32(0); i < m.capacity; i++ {
		s := &m.slots[idx]
		if !s.occupied {
			return zero, false
		}
		if s.key == key {
			val := s.val
			*s = slot[K, V]{}
			m.length--
			m.backwardShift(idx)
			return val, true
		}
		idx = (idx + 1) & (m.capacity - 1)
	}
	return zero, false
}

// backwardShift walks forward from the freshly emptied slot at emptyIdx,
// relocating any entry whose natural (hashed) position lies outside the
// half-open arc (emptyIdx, i] back into the hole, until it reaches another
// empty slot. This is the exact algorithm in dict.c's _z_dict_remove.
func (m *Map[K, V]) backwardShift(emptyIdx uint32) {
	del := emptyIdx
	idx := emptyIdx
	for {
		idx = (idx + 1) & (m.capacity - 1)
		s := &m.slots[idx]
		if !s.occupied {
			return
		}
		natural := m.indexOf(s.key)
		var shouldMove bool
		if idx > del {
			shouldMove = natural <= del || natural > idx
		} else {
			shouldMove = natural <= del && natural > idx
		}
		if shouldMove {
			m.slots[del] = *s
			*s = slot[K, V]{}
			del = idx
		}
	}
}

// Clear empties the map without shrinking its backing storage.
func (m *Map[K, V]) Clear() {
	for i := range m.slots {
		m.slots[i] = slot[K, V]{}
	}
	m.length = 0
}

// Range calls fn for every stored entry in slot order, stopping early if fn
// returns false. fn must not mutate the map.
func (m *Map[K, V]) Range(fn func(key K, val V) bool) {
	for i := range m.slots {
		if m.slots[i].occupied {
			if !fn(m.slots[i].key, m.slots[i].val) {
				return
			}
		}
	}
}
