package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashKey builds "<keyType>:<digest>" from the key parts. Parts are
// separated by NUL, so ("ab", "c") and ("a", "bc") get different keys.
func hashKey(keyType string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return keyType + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of data. The file cache shards on its first
// two characters.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
