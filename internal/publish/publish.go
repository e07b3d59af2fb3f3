// Package publish uploads composed archives to object storage as
// immutable releases and prunes old ones.
//
// Layout under a target, for root folder <f>:
//
//	<f>/releases/<release-id>/<base(f)>.zip
//	<f>/releases/<release-id>/manifest.json
//	<f>/LATEST                              (contains <release-id>)
//
// LATEST is written only after both release objects are stored, so readers
// following it never see a partial release.
package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pienkuu/pienkuu/internal/archive"
	"github.com/pienkuu/pienkuu/internal/releaseid"
	"github.com/pienkuu/pienkuu/internal/target"
)

const (
	ContentTypeArchive  = "application/zip"
	ContentTypeManifest = "application/json"
	ContentTypeLatest   = "text/plain; charset=utf-8"

	manifestName = "manifest.json"
	latestName   = "LATEST"
)

// Release is one composed archive ready for upload.
type Release struct {
	Folder   string
	ID       string
	Archive  []byte
	Manifest []byte
}

// Result is the outcome of publishing to a single target.
type Result struct {
	TargetName string
	ReleaseID  string
	Pruned     []string
}

// Publisher uploads releases. The semaphore bounds concurrent object
// operations across all targets.
type Publisher struct {
	sem    *semaphore.Weighted
	retain int
}

// New creates a Publisher that keeps the newest retain releases per target.
func New(sem *semaphore.Weighted, retain int) *Publisher {
	if retain < 1 {
		retain = 1
	}
	return &Publisher{sem: sem, retain: retain}
}

// Publish uploads rel to every target in parallel and prunes each one.
// Results are in target order. The first failure cancels the rest.
func (p *Publisher) Publish(ctx context.Context, targets []target.Target, rel Release) ([]Result, error) {
	if !releaseid.IsValid(rel.ID) {
		return nil, fmt.Errorf("publish: invalid release id %q", rel.ID)
	}

	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)

	for i, tgt := range targets {
		i, tgt := i, tgt
		g.Go(func() error {
			if err := p.Upload(gctx, tgt, rel); err != nil {
				return fmt.Errorf("publish to %s: %w", tgt.Name(), err)
			}
			pruned, err := p.Prune(gctx, tgt, rel.Folder)
			if err != nil {
				return fmt.Errorf("publish to %s: %w", tgt.Name(), err)
			}
			results[i] = Result{TargetName: tgt.Name(), ReleaseID: rel.ID, Pruned: pruned}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Upload stores the archive and manifest of rel, then points LATEST at it.
func (p *Publisher) Upload(ctx context.Context, tgt target.Target, rel Release) error {
	logger := hclog.FromContext(ctx).With("target", tgt.Name(), "release", rel.ID)
	prefix := releasePrefix(rel.Folder, rel.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.put(gctx, tgt, prefix+ArchiveName(rel.Folder), rel.Archive, target.PutOptions{
			ContentType: ContentTypeArchive,
			Metadata:    map[string]string{"content-hash": archive.ComputeHash(rel.Archive)},
		})
	})
	g.Go(func() error {
		return p.put(gctx, tgt, prefix+manifestName, rel.Manifest, target.PutOptions{
			ContentType: ContentTypeManifest,
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upload release: %w", err)
	}
	logger.Debug("uploaded release objects", "archive_bytes", len(rel.Archive))

	err := p.put(ctx, tgt, latestKey(rel.Folder), []byte(rel.ID), target.PutOptions{
		ContentType:  ContentTypeLatest,
		CacheControl: "no-cache",
	})
	if err != nil {
		return fmt.Errorf("write LATEST: %w", err)
	}

	logger.Info("published release")
	return nil
}

func (p *Publisher) put(ctx context.Context, tgt target.Target, key string, data []byte, opts target.PutOptions) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	if err := tgt.Put(ctx, key, data, opts); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Latest returns the release ID LATEST points at, or "" if none exists.
func Latest(ctx context.Context, tgt target.Target, folder string) (string, error) {
	data, _, err := tgt.Get(ctx, latestKey(folder))
	if err != nil {
		if errors.Is(err, target.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read LATEST: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LatestManifest returns the release ID LATEST points at and that
// release's manifest. Both are empty if the folder was never published.
func LatestManifest(ctx context.Context, tgt target.Target, folder string) (string, []byte, error) {
	id, err := Latest(ctx, tgt, folder)
	if err != nil || id == "" {
		return "", nil, err
	}
	data, _, err := tgt.Get(ctx, releasePrefix(folder, id)+manifestName)
	if err != nil {
		return "", nil, fmt.Errorf("read manifest of %s: %w", id, err)
	}
	return id, data, nil
}

// Releases returns the release IDs stored for folder, newest first.
func Releases(ctx context.Context, tgt target.Target, folder string) ([]string, error) {
	root := releasesRoot(folder)
	objects, err := tgt.List(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, obj := range objects {
		id, _, ok := strings.Cut(strings.TrimPrefix(obj.Key, root), "/")
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return releaseid.SortNewestFirst(ids), nil
}

// Prune deletes all but the newest retain releases of folder. The release
// LATEST points at is never deleted. Returns the pruned release IDs.
func (p *Publisher) Prune(ctx context.Context, tgt target.Target, folder string) (pruned []string, err error) {
	latest, err := Latest(ctx, tgt, folder)
	if err != nil {
		return nil, err
	}
	ids, err := Releases(ctx, tgt, folder)
	if err != nil {
		return nil, err
	}

	logger := hclog.FromContext(ctx).With("target", tgt.Name())
	for i, id := range ids {
		if i < p.retain || id == latest {
			continue
		}
		if err := p.deleteRelease(ctx, tgt, folder, id); err != nil {
			return pruned, fmt.Errorf("prune release %q: %w", id, err)
		}
		logger.Debug("pruned release", "release", id)
		pruned = append(pruned, id)
	}
	return pruned, nil
}

// deleteRelease removes every object under a release prefix.
func (p *Publisher) deleteRelease(ctx context.Context, tgt target.Target, folder, id string) error {
	objects, err := tgt.List(ctx, releasePrefix(folder, id))
	if err != nil {
		return fmt.Errorf("list release: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, obj := range objects {
		key := obj.Key
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.sem.Release(1)

			if err := tgt.Delete(gctx, key); err != nil {
				return fmt.Errorf("delete %q: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ArchiveName is the object name of a folder's archive inside a release.
func ArchiveName(folder string) string {
	return path.Base(folder) + archive.Extension
}

func latestKey(folder string) string { return folder + "/" + latestName }

func releasesRoot(folder string) string { return folder + "/releases/" }

func releasePrefix(folder, id string) string { return releasesRoot(folder) + id + "/" }
