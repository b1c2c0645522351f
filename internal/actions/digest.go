package actions

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// inputDigest hashes the raw payload as received. json.Marshal sorts map
// keys, so equal payloads digest equally regardless of field order.
func inputDigest(raw map[string]any) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
