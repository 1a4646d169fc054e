package upload

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex-encoded SHA-256 digest of raw, computed over
// the bytes exactly as uploaded, before any processing. This is a
// deliberate deviation from the source system's fast non-cryptographic
// hash: the specification explicitly permits and recommends the
// substitution for collision robustness at scale.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
