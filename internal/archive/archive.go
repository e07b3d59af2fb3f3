// Package archive implements the in-memory archive sink that composition
// writes into, and its serialization to a zip file.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Extension is appended to the root folder name to form the output file.
const Extension = ".zip"

// epoch is the modification time stamped on every entry so identical inputs
// produce identical archives.
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Sink receives archive entries. A later Put for the same path replaces the
// earlier contents.
type Sink interface {
	Put(path string, data []byte)
}

// Archive accumulates path -> contents entries.
type Archive struct {
	entries    map[string][]byte
	overwrites int
}

// New returns an empty Archive.
func New() *Archive {
	return &Archive{entries: make(map[string][]byte)}
}

// Put stores data at path, replacing any previous entry.
func (a *Archive) Put(path string, data []byte) {
	if _, ok := a.entries[path]; ok {
		a.overwrites++
	}
	a.entries[path] = data
}

// Get returns the contents stored at path.
func (a *Archive) Get(path string) ([]byte, bool) {
	data, ok := a.entries[path]
	return data, ok
}

// Paths returns every entry path in byte order.
func (a *Archive) Paths() []string {
	paths := make([]string, 0, len(a.entries))
	for p := range a.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of distinct entries.
func (a *Archive) Len() int { return len(a.entries) }

// Overwrites returns how many Put calls replaced an existing entry.
func (a *Archive) Overwrites() int { return a.overwrites }

// Size returns the total uncompressed size of all entries.
func (a *Archive) Size() int64 {
	var n int64
	for _, data := range a.entries {
		n += int64(len(data))
	}
	return n
}

// Serialize writes every entry, sorted by path, into a deflate-compressed
// zip archive. level is a flate compression level.
func (a *Archive) Serialize(level int) ([]byte, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("archive: invalid compression level %d", level)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	for _, p := range a.Paths() {
		hdr := &zip.FileHeader{
			Name:     p,
			Method:   zip.Deflate,
			Modified: epoch,
		}
		hdr.SetMode(0o644)

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("archive: create entry %q: %w", p, err)
		}
		if _, err := w.Write(a.entries[p]); err != nil {
			return nil, fmt.Errorf("archive: write entry %q: %w", p, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: close: %w", err)
	}
	return buf.Bytes(), nil
}
