package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/zenopico/pkg/protocol"
)

func TestSNSpaceAllocateWrapsAtResolution(t *testing.T) {
	s := NewSNSpace(protocol.Resolution8, 254)
	assert.Equal(t, uint64(254), s.Allocate())
	assert.Equal(t, uint64(255), s.Allocate())
	assert.Equal(t, uint64(0), s.Allocate(), "must wrap at 2^8")
}

func TestSNSpaceFollows(t *testing.T) {
	s := NewSNSpace(protocol.Resolution32, 0)
	assert.True(t, s.Follows(10, 11))
	assert.True(t, s.Follows(10, 20))
	assert.False(t, s.Follows(10, 10), "equal is not follows (duplicate)")
	assert.False(t, s.Follows(20, 10), "behind is not follows")
}

func TestSNSpaceContiguous(t *testing.T) {
	s := NewSNSpace(protocol.Resolution8, 0)
	assert.True(t, s.Contiguous(5, 6))
	assert.False(t, s.Contiguous(5, 7))
	assert.True(t, s.Contiguous(255, 0), "must wrap")
}
