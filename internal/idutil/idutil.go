package idutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RunPrefix tags run IDs.
const RunPrefix = "run"

// RunID generates an ID for a run of the package at pkgDir started at t.
// Format: run_XXXXXXXX
func RunID(pkgDir, mode string, t time.Time) string {
	return hashID(RunPrefix, fmt.Sprintf("%s:%s:%d", pkgDir, mode, t.UnixNano()))
}

// hashID creates a short hash-based ID with the given prefix
// Format: {prefix}_{first 8 hex chars of SHA256}
func hashID(prefix, data string) string {
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(hash[:])[:8])
}

// IsValidID checks if an ID matches the expected prefix format
func IsValidID(id, prefix string) bool {
	if len(id) < len(prefix)+1 {
		return false
	}
	return id[:len(prefix)] == prefix && id[len(prefix)] == '_'
}
