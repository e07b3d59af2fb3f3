// Package target stores release objects in object storage. Backends exist
// for Amazon S3, Google Cloud Storage, Azure Blob Storage and memory.
package target

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get and Head for missing keys.
var ErrNotFound = errors.New("object not found")

// PutOptions controls optional object attributes.
type PutOptions struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// ObjectMeta is returned from Get and Head.
type ObjectMeta struct {
	ETag string
	Size int64
}

// ObjectInfo is a single entry returned from List.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Target is a flat key/value object store. Keys are slash-separated and
// relative to the target's configured prefix.
type Target interface {
	// Put writes an object, replacing any existing one.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	// Get returns the object body. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, ObjectMeta, error)
	// Head returns object metadata without the body.
	Head(ctx context.Context, key string) (ObjectMeta, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all objects under prefix, keys relative to the target.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Name returns the target name for logging.
	Name() string
}

// Config holds the configuration used by NewTarget to construct a Target.
type Config struct {
	Name            string
	Type            string // "s3", "gcs", "azure", "memory"
	Bucket          string
	Region          string
	Prefix          string
	StorageAccount  string
	ContainerName   string
	KMSKeyID        string
	KMSKeyName      string
	EncryptionScope string
	MaxRetries      int
	RetryBackoff    string // "exponential" | "linear"
}

// keyspace maps logical keys to object names under a bucket prefix.
type keyspace string

func newKeyspace(prefix string) keyspace {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return keyspace(prefix + "/")
}

func (k keyspace) full(key string) string { return string(k) + key }

func (k keyspace) logical(name string) string { return strings.TrimPrefix(name, string(k)) }
