package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeReportID computes a deterministic report id using SHA256.
// Formula: SHA256(mint|snapshot_height|window_start)
// Returns hex-encoded hash (64 characters).
func ComputeReportID(mint string, snapshotHeight, windowStart int64) string {
	data := fmt.Sprintf("%s|%d|%d", mint, snapshotHeight, windowStart)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeDigest returns the hex SHA256 of a canonical payload.
// Used to compare published reports byte for byte.
func ComputeDigest(payload []byte) string {
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}
