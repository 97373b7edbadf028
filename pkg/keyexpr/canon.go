// Package keyexpr implements key-expression canonicalization, intersection,
// inclusion, and the resource-id resolver described in spec section 4.4.
//
// A key expression is a slash-separated chunk sequence with two wildcards:
// "*" matches exactly one non-empty chunk, "**" matches zero or more
// chunks. "$*" is the verbatim literal chunk "$*" (distinct from the "*"
// wildcard) and otherwise participates in matching like any ordinary
// literal chunk.
package keyexpr

import (
	"strings"

	"github.com/marmos91/zenopico/pkg/zerr"
)

const (
	singleWildcard = "*"
	multiWildcard  = "**"
)

// Canonicalize validates s and returns its canonical chunk form.
//
// A key expression is canonical iff it is non-empty, has no leading or
// trailing '/', no empty ("//") chunk, and no two adjacent "**" chunks, and
// "**" is never immediately followed by "*".
//
// When autoFix is true, purely structural defects (leading/trailing slash,
// empty chunks from "//", duplicate adjacent "**") are silently repaired by
// dropping the offending empty chunks/duplicates. A "**" directly followed
// by "*" is never auto-fixed: collapsing it would silently change which
// keys the expression matches, so it is always rejected.
func Canonicalize(s string, autoFix bool) (string, error) {
	if s == "" {
		return "", zerr.New(zerr.InvalidInput, "keyexpr: empty expression")
	}

	raw := strings.Split(s, "/")
	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		if c == "" {
			if !autoFix {
				return "", zerr.New(zerr.InvalidInput, "keyexpr: empty chunk (leading/trailing/double '/')")
			}
			continue
		}
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return "", zerr.New(zerr.InvalidInput, "keyexpr: no non-empty chunks")
	}

	out := make([]string, 0, len(chunks))
	for i, c := range chunks {
		if c == multiWildcard && len(out) > 0 && out[len(out)-1] == multiWildcard {
			if autoFix {
				continue // collapse duplicate adjacent "**"
			}
			return "", zerr.New(zerr.InvalidInput, "keyexpr: adjacent '**' chunks")
		}
		if c == multiWildcard && i+1 < len(chunks) && chunks[i+1] == singleWildcard {
			return "", zerr.New(zerr.InvalidInput, "keyexpr: '**' directly followed by '*'")
		}
		out = append(out, c)
	}
	return strings.Join(out, "/"), nil
}

// Chunks splits a canonical expression into its chunks.
func Chunks(canon string) []string {
	return strings.Split(canon, "/")
}
