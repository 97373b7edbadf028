package keyexpr

// Intersects reports whether a and b share at least one concrete matching
// key. Both must already be canonical (see Canonicalize). The relation is
// commutative.
func Intersects(a, b string) bool {
	return intersectChunks(Chunks(a), Chunks(b))
}

func intersectChunks(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) == 0:
		return b[0] == multiWildcard && intersectChunks(a, b[1:])
	case len(b) == 0:
		return a[0] == multiWildcard && intersectChunks(a[1:], b)
	case a[0] == multiWildcard:
		return intersectChunks(a[1:], b) || intersectChunks(a, b[1:])
	case b[0] == multiWildcard:
		return intersectChunks(a, b[1:]) || intersectChunks(a[1:], b)
	case a[0] == singleWildcard || b[0] == singleWildcard:
		return intersectChunks(a[1:], b[1:])
	case a[0] == b[0]:
		return intersectChunks(a[1:], b[1:])
	default:
		return false
	}
}

// Includes reports whether every concrete key matched by b is also matched
// by a (a ⊇ b). Unlike Intersects, this is not commutative: a "*" chunk in
// a can include a single concrete or "*" chunk in b, but never a "**" in b,
// because "**" can expand to something other than exactly one chunk.
func Includes(a, b string) bool {
	return includesChunks(Chunks(a), Chunks(b))
}

func includesChunks(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) == 0:
		return false
	case len(b) == 0:
		return a[0] == multiWildcard && includesChunks(a[1:], b)
	case a[0] == multiWildcard:
		return includesChunks(a[1:], b) || includesChunks(a, b[1:])
	case a[0] == singleWildcard:
		if b[0] == multiWildcard {
			return false
		}
		return includesChunks(a[1:], b[1:])
	case a[0] == b[0]:
		return includesChunks(a[1:], b[1:])
	default:
		return false
	}
}
