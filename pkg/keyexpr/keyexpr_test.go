package keyexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeRejectsStructuralDefects(t *testing.T) {
	cases := []string{"/a/b", "a/b/", "a//b", "a/**/**", ""}
	for _, c := range cases {
		_, err := Canonicalize(c, false)
		require.Error(t, err, "expected error for %q", c)
	}
}

func TestCanonicalizeAutoFix(t *testing.T) {
	got, err := Canonicalize("/a//b/", true)
	require.NoError(t, err)
	assert.Equal(t, "a/b", got)

	got, err = Canonicalize("a/**/**/b", true)
	require.NoError(t, err)
	assert.Equal(t, "a/**/b", got)
}

func TestCanonicalizeNeverFixesDoubleWildcardFollowedBySingle(t *testing.T) {
	_, err := Canonicalize("a/**/*", true)
	require.Error(t, err)
}

func TestCanonicalizeAcceptsVerbatimDollarStar(t *testing.T) {
	got, err := Canonicalize("a/$*/b", false)
	require.NoError(t, err)
	assert.Equal(t, "a/$*/b", got)
}

// TestIntersectionScenarioS4 reproduces spec section 8 scenario S4.
func TestIntersectionScenarioS4(t *testing.T) {
	assert.True(t, Intersects("a/**", "a/b/c"))
	assert.False(t, Intersects("a/*", "a/b/c"))
	assert.True(t, Intersects("a/**/d", "a/b/c/d"))
	assert.False(t, Intersects("a/$*", "a/star"))
}

func TestSelfIntersectAndInclude(t *testing.T) {
	exprs := []string{"a/b/c", "a/*/c", "a/**", "a/**/b", "$*/a"}
	for _, e := range exprs {
		assert.True(t, Intersects(e, e), "intersects(%s,%s)", e, e)
		assert.True(t, Includes(e, e), "includes(%s,%s)", e, e)
	}
}

func TestIntersectsIsCommutative(t *testing.T) {
	pairs := [][2]string{
		{"a/**", "a/b/c"},
		{"a/*", "a/b"},
		{"a/**/d", "a/b/c/d"},
		{"x/*/z", "x/y/*"},
		{"a/b", "a/c"},
	}
	for _, p := range pairs {
		assert.Equal(t, Intersects(p[0], p[1]), Intersects(p[1], p[0]))
	}
}

func TestIncludesImpliesIntersects(t *testing.T) {
	pairs := [][2]string{
		{"a/**", "a/b/c"},
		{"a/*", "a/b"},
		{"**", "a/b/c/d"},
	}
	for _, p := range pairs {
		require.True(t, Includes(p[0], p[1]))
		assert.True(t, Intersects(p[0], p[1]))
	}
}

func TestIncludesTransitivity(t *testing.T) {
	a, b, c := "**", "a/**", "a/b/c"
	require.True(t, Includes(a, b))
	require.True(t, Includes(b, c))
	assert.True(t, Includes(a, c))
}

func TestIncludesRejectsStarOverDoubleStar(t *testing.T) {
	assert.False(t, Includes("a/*", "a/**"))
	assert.True(t, Includes("a/**", "a/*"))
}

func TestExprValidate(t *testing.T) {
	require.Error(t, Expr{ID: 0, Suffix: ""}.Validate())
	require.NoError(t, Expr{ID: 0, Suffix: "a/b"}.Validate())
	require.NoError(t, Expr{ID: 7, Suffix: ""}.Validate())
}

func TestResolverExpandAndMemoizes(t *testing.T) {
	r, err := NewResolver(8)
	require.NoError(t, err)

	calls := 0
	lookup := func(id uint16) (string, bool) {
		calls++
		if id == 1 {
			return "demo/example", true
		}
		return "", false
	}

	full, err := r.Expand(Expr{ID: 1, Suffix: "a"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "demo/example/a", full)
	assert.Equal(t, 1, calls)

	// Second resolution of the same (id, suffix) must hit the memoization
	// cache rather than calling lookup again.
	full, err = r.Expand(Expr{ID: 1, Suffix: "a"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "demo/example/a", full)
	assert.Equal(t, 1, calls)
}

func TestResolverStatsTracksHitsAndMisses(t *testing.T) {
	r, err := NewResolver(8)
	require.NoError(t, err)
	lookup := func(id uint16) (string, bool) {
		if id == 1 {
			return "demo/example", true
		}
		return "", false
	}

	_, err = r.Expand(Expr{ID: 1, Suffix: "a"}, lookup) // miss
	require.NoError(t, err)
	_, err = r.Expand(Expr{ID: 1, Suffix: "a"}, lookup) // hit
	require.NoError(t, err)

	hits, total := r.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), total)
}

func TestResolverExpandUnknownResource(t *testing.T) {
	r, err := NewResolver(8)
	require.NoError(t, err)
	_, err = r.Expand(Expr{ID: 42, Suffix: "a"}, func(uint16) (string, bool) { return "", false })
	require.Error(t, err)
}

func TestResolverExpandZeroIDReturnsSuffixVerbatim(t *testing.T) {
	r, err := NewResolver(8)
	require.NoError(t, err)
	full, err := r.Expand(Expr{ID: 0, Suffix: "demo/example/a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo/example/a", full)
}
