package lru

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strHash(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, c := range []byte(s) {
		h ^= uint64(c)
		h *= prime
	}
	return h
}

// TestEvictionOrderScenarioS6 reproduces spec section 8 scenario S6.
func TestEvictionOrderScenarioS6(t *testing.T) {
	c, err := New[string, int](3, strHash)
	require.NoError(t, err)

	c.Insert("A", 1, nil)
	c.Insert("B", 2, nil)
	c.Insert("C", 3, nil)

	_, ok := c.Get("A")
	require.True(t, ok)

	c.Insert("D", 4, nil)

	_, ok = c.Get("B")
	assert.False(t, ok)

	for _, k := range []string{"A", "C", "D"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "expected %s present", k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestInsertBeyondCapacityKeepsExactlyCapacityEntries(t *testing.T) {
	const capacity = 10
	c, err := New[int, int](capacity, func(k int) uint64 { return uint64(k) })
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		c.Insert(i, i*i, nil)
	}
	assert.Equal(t, capacity, c.Len())
	for i := 990; i < 1000; i++ {
		v, ok := c.Get(i)
		require.True(t, ok)
		assert.Equal(t, i*i, v)
	}
}

// TestRecencyOrderSurvivesRandomGetsAndInserts is a randomized property test
// (spec section 8 property 6): after many inserts/gets, the resident set is
// exactly the capacity most recently touched keys.
func TestRecencyOrderSurvivesRandomGetsAndInserts(t *testing.T) {
	const capacity = 16
	c, err := New[int, int](capacity, func(k int) uint64 { return uint64(k) * 2654435761 })
	require.NoError(t, err)

	var recency []int // front = most recent
	touch := func(k int) {
		for i, existing := range recency {
			if existing == k {
				recency = append(recency[:i], recency[i+1:]...)
				break
			}
		}
		recency = append([]int{k}, recency...)
		if len(recency) > capacity {
			recency = recency[:capacity]
		}
	}

	rng := rand.New(rand.NewSource(42))
	present := map[int]bool{}
	for step := 0; step < 2000; step++ {
		key := rng.Intn(40)
		if present[key] {
			_, ok := c.Get(key)
			require.True(t, ok)
			touch(key)
			continue
		}
		var evicted *int
		c.Insert(key, key, func(k, v int) { evicted = &k })
		present[key] = true
		touch(key)
		if evicted != nil {
			delete(present, *evicted)
		}
	}

	want := map[int]bool{}
	for _, k := range recency {
		want[k] = true
	}
	assert.Equal(t, len(want), c.Len())
	for k := range want {
		_, ok := c.Get(k)
		assert.True(t, ok, "expected recent key %d present", k)
	}
}

func TestClearEmptiesCache(t *testing.T) {
	c, err := New[string, int](4, strHash)
	require.NoError(t, err)
	c.Insert("a", 1, nil)
	c.Insert("b", 2, nil)
	cleared := map[string]int{}
	c.Clear(func(k string, v int) { cleared[k] = v })
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, cleared)
	_, ok := c.Get("a")
	assert.False(t, ok)
}
