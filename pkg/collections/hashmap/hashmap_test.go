package hashmap

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// u32Key is the smallest Key implementation: a plain uint32 id, as used by
// every declaration table in pkg/session.
type u32Key uint32

func (k u32Key) Bytes() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(k))
	return b
}

func TestInsertGetRemove(t *testing.T) {
	m := New[u32Key, string](8, true)
	require.NoError(t, m.Insert(1, "one"))
	require.NoError(t, m.Insert(2, "two"))

	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok = m.Remove(1)
	require.True(t, ok)
	_, ok = m.Get(1)
	assert.False(t, ok)

	v, ok = m.Get(2)
	require.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestInsertRejectsReservedKey(t *testing.T) {
	m := New[u32Key, string](8, true)
	err := m.Insert(u32Key(0xFFFFFFFF), "nope")
	require.Error(t, err)
}

func TestExpandOnLoadFactor(t *testing.T) {
	m := New[u32Key, int](4, true)
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Insert(u32Key(i), i))
	}
	assert.Equal(t, 100, m.Len())
	for i := 0; i < 100; i++ {
		v, ok := m.Get(u32Key(i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestNonResizableOverflows(t *testing.T) {
	m := New[u32Key, int](4, false)
	inserted := 0
	var lastErr error
	for i := 0; i < 10; i++ {
		if err := m.Insert(u32Key(i), i); err != nil {
			lastErr = err
			break
		}
		inserted++
	}
	require.Error(t, lastErr)
	assert.Less(t, inserted, 10)
}

// TestBackwardShiftPreservesLookups is a randomized version of property 4/5
// from spec section 8: insert/remove/get against a model map must agree,
// and removal must not break the probe chain for survivors.
func TestBackwardShiftPreservesLookups(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := New[u32Key, int](16, true)
	model := map[uint32]int{}

	for step := 0; step < 5000; step++ {
		key := uint32(rng.Intn(64))
		switch rng.Intn(3) {
		case 0:
			val := rng.Int()
			require.NoError(t, m.Insert(u32Key(key), val))
			model[key] = val
		case 1:
			m.Remove(u32Key(key))
			delete(model, key)
		case 2:
			v, ok := m.Get(u32Key(key))
			mv, mok := model[key]
			require.Equal(t, mok, ok)
			if ok {
				require.Equal(t, mv, v)
			}
		}
	}

	for k, v := range model {
		got, ok := m.Get(u32Key(k))
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestRangeVisitsAllEntries(t *testing.T) {
	m := New[u32Key, int](8, true)
	want := map[uint32]int{1: 10, 2: 20, 3: 30}
	for k, v := range want {
		require.NoError(t, m.Insert(u32Key(k), v))
	}
	got := map[uint32]int{}
	m.Range(func(k u32Key, v int) bool {
		got[uint32(k)] = v
		return true
	})
	assert.Equal(t, want, got)
}

func TestClear(t *testing.T) {
	m := New[u32Key, int](8, true)
	require.NoError(t, m.Insert(1, 1))
	m.Clear()
	assert.Equal(t, 0, m.Len())
	_, ok := m.Get(1)
	assert.False(t, ok)
}
