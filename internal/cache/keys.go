package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeQuery canonicalizes free-text query input so that logically
// equivalent requests share a cache key: lower-cased, trimmed, and
// internal whitespace collapsed to single spaces.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Key derives a deterministic digest from the given parts. Parts are
// length-prefix separated before hashing so that ("ab","c") and ("a","bc")
// cannot collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		// Unit separator keeps part boundaries unambiguous.
		h.Write([]byte(p))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PairKey derives a key for an unordered pair of card identifiers:
// PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return Key("pair", a, b)
}
