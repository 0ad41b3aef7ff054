package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// snapshotHash computes a canonical content hash of a snapshot. encoding/json
// emits struct fields in declaration order and map keys sorted, so equal
// snapshots always produce equal hashes.
func snapshotHash(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Domain records always marshal; treat the impossible as changed.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
