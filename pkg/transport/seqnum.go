package transport

import (
	"sync/atomic"

	"github.com/marmos91/zenopico/pkg/protocol"
)

// SNSpace is one channel's sequence-number counter, modular over
// 2^resolution (spec section 4.6: "Sequence numbers. 28-bit by default;
// modular comparison treats b-a mod 2^res < 2^(res-1) as 'b follows a'").
type SNSpace struct {
	resolution protocol.Resolution
	next       atomic.Uint64
}

// NewSNSpace creates a counter starting at initial, modular over
// resolution's bit width.
func NewSNSpace(resolution protocol.Resolution, initial uint64) *SNSpace {
	s := &SNSpace{resolution: resolution}
	s.next.Store(initial % s.modulus())
	return s
}

func (s *SNSpace) modulus() uint64 { return uint64(1) << uint(s.resolution) }

// Allocate returns the next sequence number for this channel and advances
// the counter, wrapping modulo 2^resolution.
func (s *SNSpace) Allocate() uint64 {
	for {
		cur := s.next.Load()
		next := (cur + 1) % s.modulus()
		if s.next.CompareAndSwap(cur, next) {
			return cur
		}
	}
}

// Follows reports whether b immediately or eventually follows a in modular
// sequence order, per the spec's b-a mod 2^res < 2^(res-1) test. Equal
// values are not "follows" — callers treat sn == last as a duplicate.
func (s *SNSpace) Follows(a, b uint64) bool {
	mod := s.modulus()
	diff := ((b%mod - a%mod) + mod) % mod
	return diff > 0 && diff < mod/2
}

// Contiguous reports whether sn is exactly one past prev, the invariant a
// defragmenter requires between successive fragments of the same message.
func (s *SNSpace) Contiguous(prev, sn uint64) bool {
	mod := s.modulus()
	return sn%mod == (prev+1)%mod
}
