package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const hashPrefix = "sha256:"

// ComputeHash returns the SHA-256 of data in the canonical "sha256:<hex>"
// form.
func ComputeHash(data []byte) string {
	h := sha256.Sum256(data)
	return hashPrefix + hex.EncodeToString(h[:])
}

// Hashes returns path -> "sha256:<hex>" for every entry.
func (a *Archive) Hashes() map[string]string {
	out := make(map[string]string, len(a.entries))
	for p, data := range a.entries {
		out[p] = ComputeHash(data)
	}
	return out
}

// ContentHash is a deterministic hash over all entry paths and their
// contents. It ignores compression, so it is stable across levels.
//
// Each entry contributes "<path>\0<hex>\n" in sorted path order.
func (a *Archive) ContentHash() string {
	return CombineHashes(a.Hashes())
}

// CombineHashes computes the aggregate hash of a path -> hash map.
func CombineHashes(files map[string]string) string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k + "\x00" + strings.TrimPrefix(files[k], hashPrefix) + "\n"))
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}
