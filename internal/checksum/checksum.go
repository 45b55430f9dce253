// Package checksum fingerprints note contents so rescans can report which
// notes changed.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Diff returns the sorted paths that were added, removed or whose digest
// differs between previous and current.
func Diff(previous, current map[string]string) []string {
	var out []string
	for p, sum := range current {
		if old, ok := previous[p]; !ok || old != sum {
			out = append(out, p)
		}
	}
	for p := range previous {
		if _, ok := current[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
