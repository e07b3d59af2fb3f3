package target

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcsstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type gcsTarget struct {
	client     *gcsstorage.Client
	bucket     string
	keys       keyspace
	kmsKeyName string
	name       string
}

// newGCSTarget builds a GCS Target using Application Default Credentials.
func newGCSTarget(ctx context.Context, cfg Config) (Target, error) {
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	return &gcsTarget{
		client:     client,
		bucket:     cfg.Bucket,
		keys:       newKeyspace(cfg.Prefix),
		kmsKeyName: cfg.KMSKeyName,
		name:       cfg.Name,
	}, nil
}

func (t *gcsTarget) Name() string { return t.name }

func (t *gcsTarget) object(key string) *gcsstorage.ObjectHandle {
	return t.client.Bucket(t.bucket).Object(t.keys.full(key))
}

func (t *gcsTarget) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	w := t.object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.CacheControl = opts.CacheControl
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}
	if t.kmsKeyName != "" {
		w.KMSKeyName = t.kmsKeyName
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close writer %q: %w", key, err)
	}
	return nil
}

func (t *gcsTarget) Get(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	r, err := t.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcsstorage.ErrObjectNotExist) {
			return nil, ObjectMeta{}, ErrNotFound
		}
		return nil, ObjectMeta{}, fmt.Errorf("gcs NewReader %q: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("gcs read %q: %w", key, err)
	}
	return data, ObjectMeta{Size: int64(len(data))}, nil
}

func (t *gcsTarget) Head(ctx context.Context, key string) (ObjectMeta, error) {
	attrs, err := t.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcsstorage.ErrObjectNotExist) {
			return ObjectMeta{}, ErrNotFound
		}
		return ObjectMeta{}, fmt.Errorf("gcs Attrs %q: %w", key, err)
	}
	return ObjectMeta{ETag: attrs.Etag, Size: attrs.Size}, nil
}

func (t *gcsTarget) Delete(ctx context.Context, key string) error {
	err := t.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcsstorage.ErrObjectNotExist) {
		return fmt.Errorf("gcs Delete %q: %w", key, err)
	}
	return nil
}

func (t *gcsTarget) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := t.client.Bucket(t.bucket).Objects(ctx, &gcsstorage.Query{
		Prefix: t.keys.full(prefix),
	})

	var results []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs List prefix %q: %w", prefix, err)
		}
		results = append(results, ObjectInfo{
			Key:  t.keys.logical(attrs.Name),
			Size: attrs.Size,
		})
	}
	return results, nil
}
