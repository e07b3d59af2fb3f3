// Package releaseid generates and parses release identifiers.
//
// Format: rel_<timestamp>_<random>
//   - timestamp: UTC YYYYMMDD'T'HHmmss'Z'
//   - random:    8 lowercase hex characters from crypto/rand
//
// IDs of releases made at different seconds sort lexically by creation
// time, which is what release pruning relies on.
//
// Example: rel_20261015T091500Z_6f2c9a1b
package releaseid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	prefix       = "rel_"
	timestampFmt = "20060102T150405Z"
	randomBytes  = 4
)

// New returns a release ID stamped with the current UTC time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a release ID stamped with t.
func NewAt(t time.Time) string {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("releaseid: crypto/rand failed: %v", err))
	}
	return prefix + t.UTC().Format(timestampFmt) + "_" + hex.EncodeToString(b)
}

// Parse returns the creation time encoded in id.
func Parse(id string) (time.Time, error) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return time.Time{}, fmt.Errorf("releaseid: invalid prefix in %q", id)
	}

	stamp, random, ok := strings.Cut(rest, "_")
	if !ok {
		return time.Time{}, fmt.Errorf("releaseid: missing random segment in %q", id)
	}

	ts, err := time.Parse(timestampFmt, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("releaseid: bad timestamp in %q: %w", id, err)
	}

	if len(random) != randomBytes*2 {
		return time.Time{}, fmt.Errorf("releaseid: random segment wrong length in %q", id)
	}
	if _, err := hex.DecodeString(random); err != nil {
		return time.Time{}, fmt.Errorf("releaseid: random segment not hex in %q: %w", id, err)
	}

	return ts, nil
}

// IsValid reports whether id is a well-formed release ID.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// SortNewestFirst orders ids from newest to oldest. Invalid IDs are
// dropped.
func SortNewestFirst(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if IsValid(id) {
			valid = append(valid, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(valid)))
	return valid
}
