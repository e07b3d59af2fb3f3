// Package compose builds an archive from a folder and, recursively, the
// folders it depends on.
//
// For a single folder the order of effects is fixed:
//
//  1. Load pienkuu.json and resolve action names
//  2. Compose every dependency, in declared order, depth-first
//  3. Rewrite the folder's ignore/minify rules to archive-global rules
//  4. Walk the folder, drop ignored files, minify selected files
//  5. Write the surviving files into the sink
//  6. Run the declared actions in order
//
// The first error anywhere in the tree aborts the whole composition.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/pienkuu/pienkuu/internal/action"
	"github.com/pienkuu/pienkuu/internal/archive"
	"github.com/pienkuu/pienkuu/internal/filter"
	"github.com/pienkuu/pienkuu/internal/folderconfig"
	"github.com/pienkuu/pienkuu/internal/minify"
)

// DependencyCycleError is returned when a folder depends on itself through
// its dependency chain.
type DependencyCycleError struct {
	Chain []string // first and last elements are the same folder
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("compose: dependency cycle: %s", strings.Join(e.Chain, " -> "))
}

// InvalidFolderError is returned for folder names that cannot be used as
// archive path prefixes.
type InvalidFolderError struct {
	Folder string
}

func (e *InvalidFolderError) Error() string {
	return fmt.Sprintf("compose: invalid folder name %q: must be a relative path inside the working directory", e.Folder)
}

// Composer composes folders into an archive sink. It is not safe for
// concurrent use; composition is sequential by contract.
type Composer struct {
	fsys     afero.Fs
	tree     fs.FS
	actions  *action.Registry
	minifier minify.Minifier
	observer Observer
}

// Option configures a Composer.
type Option func(*Composer)

// WithObserver registers o to receive composition events.
func WithObserver(o Observer) Option {
	return func(c *Composer) { c.observer = o }
}

// New creates a Composer reading folders from fsys.
func New(fsys afero.Fs, actions *action.Registry, minifier minify.Minifier, opts ...Option) *Composer {
	c := &Composer{
		fsys:     fsys,
		tree:     afero.NewIOFS(fsys),
		actions:  actions,
		minifier: minifier,
		observer: ObserverFunc(func(Event) {}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CleanFolder normalises a folder name to the slash-separated form used as
// the archive prefix, e.g. "./proj/" becomes "proj".
func CleanFolder(folder string) (string, error) {
	name := path.Clean(filepath.ToSlash(folder))
	if name == "." || !fs.ValidPath(name) {
		return "", &InvalidFolderError{Folder: folder}
	}
	return name, nil
}

// Compose adds folder, its dependencies and the output of its actions to
// sink. On success everything has been applied; on error sink holds a
// partial result that must be discarded.
func (c *Composer) Compose(ctx context.Context, folder string, sink archive.Sink) error {
	return c.compose(ctx, folder, sink, nil)
}

func (c *Composer) compose(ctx context.Context, folder string, sink archive.Sink, active []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := CleanFolder(folder)
	if err != nil {
		return err
	}
	for _, f := range active {
		if f == name {
			chain := append(append([]string{}, active...), name)
			return &DependencyCycleError{Chain: chain}
		}
	}
	active = append(active, name)

	logger := hclog.FromContext(ctx).With("folder", name)
	c.observer.Observe(Event{Kind: FolderStart, Folder: name})

	cfg, err := folderconfig.Load(c.fsys, name)
	if err != nil {
		return err
	}
	bound, err := c.actions.Resolve(name, cfg.Actions)
	if err != nil {
		return err
	}

	for _, dep := range cfg.Dependencies {
		logger.Debug("composing dependency", "dependency", dep)
		if err := c.compose(ctx, dep, sink, active); err != nil {
			return err
		}
	}

	rules := filter.Resolve(name, cfg)
	if err := rules.Validate(); err != nil {
		return &folderconfig.ParseError{Folder: name, Err: err}
	}

	paths, err := c.enumerate(ctx, name, rules)
	if err != nil {
		return fmt.Errorf("compose %s: %w", name, err)
	}

	contents := make([][]byte, len(paths))
	for i, p := range paths {
		data, err := c.read(p, rules)
		if err != nil {
			return fmt.Errorf("compose %s: %w", name, err)
		}
		contents[i] = data
	}

	for i, p := range paths {
		sink.Put(p, contents[i])
	}
	c.observer.Observe(Event{Kind: FilesWritten, Folder: name, Files: len(paths)})
	logger.Debug("wrote folder files", "files", len(paths))

	actx := &action.Context{Folder: name, Sink: sink, Config: cfg}
	for _, b := range bound {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Run(ctx, actx); err != nil {
			return err
		}
		c.observer.Observe(Event{Kind: ActionDone, Folder: name, Action: b.Name})
	}

	c.observer.Observe(Event{Kind: FolderDone, Folder: name})
	logger.Info("composed folder", "files", len(paths), "actions", len(bound))
	return nil
}

// enumerate returns every non-ignored file under folder as an archive path,
// in lexical walk order.
func (c *Composer) enumerate(ctx context.Context, folder string, rules filter.Set) ([]string, error) {
	logger := hclog.FromContext(ctx)

	var paths []string
	err := fs.WalkDir(c.tree, folder, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if pattern, ignored := rules.Explain(p); ignored {
			logger.Trace("ignoring file", "path", p, "pattern", pattern)
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", folder, err)
	}
	return paths, nil
}

// read loads p, minifying it when the rules select it.
func (c *Composer) read(p string, rules filter.Set) ([]byte, error) {
	data, err := afero.ReadFile(c.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if !rules.ShouldMinify(p) {
		return data, nil
	}

	out, err := c.minifier.Minify(p, string(data))
	if err != nil {
		var me *minify.Error
		if errors.As(err, &me) {
			return nil, err
		}
		return nil, &minify.Error{Name: p, Err: err}
	}
	return []byte(out), nil
}
