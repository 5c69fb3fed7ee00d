package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the hex-encoded SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey returns "<namespace>:<digest>", where digest covers the JSON
// encoding of parts.
func hashKey(namespace string, parts ...any) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(parts)
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
