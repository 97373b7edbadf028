package session

import (
	"github.com/marmos91/zenopico/pkg/collections/hashmap"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// table is a declaration table (spec section 4.7): a resource, subscriber,
// publisher, queryable or liveliness-token registry keyed by u32 id. It
// layers declaration order on top of hashmap.Map, since sample dispatch
// (spec section 4.7: "scan order is declaration order") needs a
// deterministic iteration order the open-addressed map's slot order
// doesn't provide.
type table[V any] struct {
	byID  *hashmap.Map[id32, V]
	order []uint32
}

func newTable[V any]() *table[V] {
	return &table[V]{byID: hashmap.New[id32, V](0, true)}
}

// insert adds id with no duplicate check — used by resource declarations,
// which a peer may legitimately redeclare (re-sending the same prefix for
// an id is not an error the way re-declaring a subscriber id is).
func (t *table[V]) insert(id uint32, v V) {
	if !t.byID.Has(id32(id)) {
		t.order = append(t.order, id)
	}
	_ = t.byID.Insert(id32(id), v)
}

// insertNew adds id, failing with EntityDeclarationFailed if already
// present (spec.md section 5 supplemented-feature #2: the original rejects
// a second declare for an id already present).
func (t *table[V]) insertNew(id uint32, v V) error {
	if t.byID.Has(id32(id)) {
		return zerr.New(zerr.EntityDeclarationFailed, "session: id already declared")
	}
	t.insert(id, v)
	return nil
}

func (t *table[V]) get(id uint32) (V, bool) {
	return t.byID.Get(id32(id))
}

// remove deletes id, failing with EntityUnknown if absent (spec section 7:
// undeclaring a non-existent id is a caller error, not a no-op).
func (t *table[V]) remove(id uint32) (V, error) {
	v, ok := t.byID.Remove(id32(id))
	if !ok {
		var zero V
		return zero, zerr.New(zerr.EntityUnknown, "session: undeclare of unknown id")
	}
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return v, nil
}

func (t *table[V]) len() int { return t.byID.Len() }

// rangeOrdered calls fn for every entry in declaration order, stopping
// early if fn returns false.
func (t *table[V]) rangeOrdered(fn func(id uint32, v V) bool) {
	for _, id := range t.order {
		v, ok := t.byID.Get(id32(id))
		if !ok {
			continue // removed mid-range by a reentrant caller; skip
		}
		if !fn(id, v) {
			return
		}
	}
}
