package session

import "encoding/binary"

// id32 adapts a plain declaration id (resource/subscriber/publisher/
// queryable/token, all u32 per spec section 3) to hashmap.Key, which needs
// a canonical byte representation to check the reserved all-0xFF pattern.
// 0xFFFFFFFF is not a valid id the session's monotonic allocator ever
// produces, so the rejection never fires in practice; it exists to satisfy
// the hashmap's own precondition.
type id32 uint32

func (k id32) Bytes() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(k))
	return b[:]
}
