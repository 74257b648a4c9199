package utils

import (
	"crypto/sha1"
	"encoding/hex"
)

// SHA1Hex computes the SHA-1 hash of a string as a lowercase hex string.
// Used for raw-body filenames and query-string digests; identity only,
// not integrity.
func SHA1Hex(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// QueryDigest returns the 8-hex-character digest inserted into asset
// filenames to disambiguate otherwise-colliding paths.
func QueryDigest(rawQuery string) string {
	return SHA1Hex(rawQuery)[:8]
}
