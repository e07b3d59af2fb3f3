// Package manifest describes a published release and provides deterministic
// serialization / deserialization.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pienkuu/pienkuu/internal/archive"
)

// SchemaVersion is the manifest format written by this version of the tool.
const SchemaVersion = 1

// Manifest is written next to every published archive.
type Manifest struct {
	SchemaVersion int               `json:"schema_version"`
	ToolVersion   string            `json:"tool_version"`
	Folder        string            `json:"folder"`
	ReleaseID     string            `json:"release_id"`
	CreatedAt     string            `json:"created_at"`
	ContentHash   string            `json:"content_hash"`
	ArchiveHash   string            `json:"archive_hash"`
	ArchiveSize   int64             `json:"archive_size"`
	Overwrites    int               `json:"overwrites"`
	Files         map[string]string `json:"files"`
}

// New builds the manifest for archive a, serialized to data, as release id
// of folder.
func New(toolVersion, folder, id string, createdAt time.Time, a *archive.Archive, data []byte) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		ToolVersion:   toolVersion,
		Folder:        folder,
		ReleaseID:     id,
		CreatedAt:     createdAt.UTC().Format(time.RFC3339),
		ContentHash:   a.ContentHash(),
		ArchiveHash:   archive.ComputeHash(data),
		ArchiveSize:   int64(len(data)),
		Overwrites:    a.Overwrites(),
		Files:         a.Hashes(),
	}
}

// deterministicFiles serializes a map[string]string with keys in sorted
// order so the output is deterministic.
type deterministicFiles struct {
	m map[string]string
}

func (d deterministicFiles) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(d.m))
	for k := range d.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valBytes, err := json.Marshal(d.m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// marshalProxy mirrors Manifest with Files replaced by the sorted wrapper.
type marshalProxy struct {
	SchemaVersion int                `json:"schema_version"`
	ToolVersion   string             `json:"tool_version"`
	Folder        string             `json:"folder"`
	ReleaseID     string             `json:"release_id"`
	CreatedAt     string             `json:"created_at"`
	ContentHash   string             `json:"content_hash"`
	ArchiveHash   string             `json:"archive_hash"`
	ArchiveSize   int64              `json:"archive_size"`
	Overwrites    int                `json:"overwrites"`
	Files         deterministicFiles `json:"files"`
}

// Marshal serializes a Manifest to deterministic, indented JSON.
func Marshal(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest: cannot marshal nil manifest")
	}

	proxy := marshalProxy{
		SchemaVersion: m.SchemaVersion,
		ToolVersion:   m.ToolVersion,
		Folder:        m.Folder,
		ReleaseID:     m.ReleaseID,
		CreatedAt:     m.CreatedAt,
		ContentHash:   m.ContentHash,
		ArchiveHash:   m.ArchiveHash,
		ArchiveSize:   m.ArchiveSize,
		Overwrites:    m.Overwrites,
		Files:         deterministicFiles{m: m.Files},
	}

	return json.MarshalIndent(proxy, "", "  ")
}

// Unmarshal deserializes JSON bytes into a Manifest.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal failed: %w", err)
	}
	if m.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("manifest: unsupported schema version %d", m.SchemaVersion)
	}
	return &m, nil
}
