package cli

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/pienkuu/pienkuu/internal/archive"
	"github.com/pienkuu/pienkuu/internal/manifest"
	"github.com/pienkuu/pienkuu/internal/planformat"
	"github.com/pienkuu/pienkuu/internal/publish"
	"github.com/pienkuu/pienkuu/internal/releaseid"
	"github.com/pienkuu/pienkuu/internal/settings"
)

func (a *App) publish(ctx context.Context, cfg *settings.Settings, folder string, sink *archive.Archive, data []byte) error {
	targets, err := a.openTargets(ctx, cfg)
	if err != nil {
		return err
	}

	now := a.deps.Now()
	id := releaseid.NewAt(now)
	m, err := manifest.Marshal(manifest.New(Version, folder, id, now, sink, data))
	if err != nil {
		return err
	}

	pub := publish.New(semaphore.NewWeighted(int64(cfg.Publish.MaxConcurrency)), cfg.Publish.Retain)
	results, err := pub.Publish(ctx, targets, publish.Release{
		Folder:   folder,
		ID:       id,
		Archive:  data,
		Manifest: m,
	})
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Fprintf(a.deps.Stdout, "published %s to %s", r.ReleaseID, r.TargetName)
		if len(r.Pruned) > 0 {
			fmt.Fprintf(a.deps.Stdout, " (pruned %d)", len(r.Pruned))
		}
		fmt.Fprintln(a.deps.Stdout)
	}
	return nil
}

func (a *App) dryRun(ctx context.Context, cfg *settings.Settings, folder string, sink *archive.Archive, withTargets bool) error {
	hashes := sink.Hashes()

	plan := &planformat.Plan{
		ArchiveName: folder + archive.Extension,
		ContentHash: archive.CombineHashes(hashes),
		Overwrites:  sink.Overwrites(),
	}
	for _, p := range sink.Paths() {
		data, _ := sink.Get(p)
		plan.Entries = append(plan.Entries, planformat.Entry{
			Path:      p,
			SizeBytes: int64(len(data)),
			Hash:      hashes[p],
		})
	}

	if withTargets {
		targets, err := a.openTargets(ctx, cfg)
		if err != nil {
			return err
		}
		for _, tgt := range targets {
			id, raw, err := publish.LatestManifest(ctx, tgt, folder)
			if err != nil {
				return fmt.Errorf("dry run: %s: %w", tgt.Name(), err)
			}
			var previous map[string]string
			if id != "" {
				m, err := manifest.Unmarshal(raw)
				if err != nil {
					return fmt.Errorf("dry run: %s: %w", tgt.Name(), err)
				}
				previous = m.Files
			}
			plan.Targets = append(plan.Targets, planformat.TargetActionFor(tgt.Name(), id, previous, hashes))
		}
	}

	_, err := fmt.Fprint(a.deps.Stdout, planformat.Format(plan))
	return err
}
