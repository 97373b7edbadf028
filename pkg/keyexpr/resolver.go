package keyexpr

import (
	"hash/fnv"
	"strings"
	"sync/atomic"

	"github.com/marmos91/zenopico/pkg/collections/lru"
	"github.com/marmos91/zenopico/pkg/zerr"
)

// Expr is the compressed wire form of a key expression: a declared resource
// id carrying the prefix, plus the locally-known suffix. Spec section 3
// invariant: an Expr with ID 0 must carry a non-empty Suffix (there is no
// declared prefix to fall back on); an Expr with ID != 0 may carry an empty
// suffix (the declared prefix alone is the full expression).
type Expr struct {
	ID     uint16
	Suffix string
}

// Validate enforces the id/suffix invariant from spec section 3.
func (e Expr) Validate() error {
	if e.ID == 0 && e.Suffix == "" {
		return zerr.New(zerr.InvalidInput, "keyexpr: id 0 requires a non-empty suffix")
	}
	return nil
}

// Direction distinguishes the two resolver cache namespaces: expanding a
// declared (id, suffix) pair into a full key expression, versus compressing
// a full expression against the known prefixes to find a reusable id
// (Compress; pkg/session does not call it).
type Direction uint8

const (
	DirectionExpand Direction = iota
	DirectionCompress
)

type cacheKey struct {
	id         uint16
	suffixHash uint64
	dir        Direction
}

func hashSuffix(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// PrefixLookup resolves a declared resource id to its registered prefix.
type PrefixLookup func(id uint16) (prefix string, ok bool)

// Resolver memoizes (id, suffix) → expanded key-expression lookups in an
// LRU cache, per spec section 4.4 ("Resolution is memoised in the LRU
// cache keyed by (id, suffix_hash, mapping_direction)").
type Resolver struct {
	cache *lru.Cache[cacheKey, Expr]

	hits  atomic.Uint64
	total atomic.Uint64
}

// NewResolver creates a Resolver whose memoization cache holds at most
// capacity entries.
func NewResolver(capacity int) (*Resolver, error) {
	cache, err := lru.New[cacheKey, Expr](capacity, func(k cacheKey) uint64 {
		return uint64(k.id)<<2 ^ k.suffixHash<<1 ^ uint64(k.dir)
	})
	if err != nil {
		return nil, err
	}
	return &Resolver{cache: cache}, nil
}

// Expand resolves expr into a full key expression by concatenating the
// declared prefix for expr.ID (via lookup) with expr.Suffix. Fails with
// zerr.UnknownResource if the id has no registered prefix.
func (r *Resolver) Expand(expr Expr, lookup PrefixLookup) (string, error) {
	if expr.ID == 0 {
		return expr.Suffix, nil
	}
	key := cacheKey{id: expr.ID, suffixHash: hashSuffix(expr.Suffix), dir: DirectionExpand}
	r.total.Add(1)
	if cached, ok := r.cache.Get(key); ok {
		r.hits.Add(1)
		return cached.Suffix, nil
	}

	prefix, ok := lookup(expr.ID)
	if !ok {
		return "", zerr.New(zerr.UnknownResource, "keyexpr: unknown resource id")
	}

	full := prefix
	if expr.Suffix != "" {
		if full == "" {
			full = expr.Suffix
		} else {
			full = strings.TrimSuffix(full, "/") + "/" + expr.Suffix
		}
	}
	r.cache.Insert(key, Expr{Suffix: full}, nil)
	return full, nil
}

// Compress looks for a declared resource whose prefix is exactly full,
// memoizing hits the same way Expand does (misses are not cached), so a resource
// declared once is found in O(1) on every subsequent publish of the same
// key expression. lookup maps a candidate prefix to its id.
func (r *Resolver) Compress(full string, lookup func(prefix string) (id uint16, ok bool)) (Expr, bool) {
	key := cacheKey{id: 0, suffixHash: hashSuffix(full), dir: DirectionCompress}
	r.total.Add(1)
	if cached, ok := r.cache.Get(key); ok {
		r.hits.Add(1)
		return cached, true
	}
	id, ok := lookup(full)
	if !ok {
		return Expr{}, false
	}
	expr := Expr{ID: id, Suffix: ""}
	r.cache.Insert(key, expr, nil)
	return expr, true
}

// Stats reports cumulative lookup counts across both Expand and Compress,
// for callers that surface an LRU hit-rate gauge.
func (r *Resolver) Stats() (hits, total uint64) {
	return r.hits.Load(), r.total.Load()
}
