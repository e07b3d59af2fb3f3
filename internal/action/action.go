// Package action runs the post-processing steps declared in a folder's
// configuration after its files have been added to the archive.
package action

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/pienkuu/pienkuu/internal/archive"
	"github.com/pienkuu/pienkuu/internal/folderconfig"
)

// Options are the free-form options of one declared action.
type Options map[string]any

// Context is shared by all actions of one folder. Actions only mutate Sink.
type Context struct {
	Folder string
	Sink   archive.Sink
	Config *folderconfig.Config
}

// Action is one named handler.
type Action interface {
	Run(ctx context.Context, opts Options, c *Context) error
}

// Fetcher downloads a URL. fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// UnknownActionError is returned for an action name with no handler.
type UnknownActionError struct {
	Folder string
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action: invalid action name %q in %q: no handler for action found",
		e.Action, folderconfig.Path(e.Folder))
}

// OptionsError is returned when an action's options are missing or have the
// wrong type.
type OptionsError struct {
	Folder string
	Action string
	Option string
	Reason string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("action: %s in %q: option %q %s",
		e.Action, folderconfig.Path(e.Folder), e.Option, e.Reason)
}

// Registry maps action names to handlers.
type Registry struct {
	actions map[string]Action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Builtin returns a registry holding the print and download actions.
func Builtin(out io.Writer, fetcher Fetcher) *Registry {
	r := NewRegistry()
	r.Register("print", &Print{Out: out})
	r.Register("download", &Download{Fetcher: fetcher})
	return r
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, a Action) {
	r.actions[name] = a
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bound is a declared action resolved to its handler.
type Bound struct {
	Name    string
	Options Options
	action  Action
}

// Resolve binds every spec of folder to a handler. It fails on the first
// unknown name without running anything.
func (r *Registry) Resolve(folder string, specs []folderconfig.ActionSpec) ([]Bound, error) {
	bound := make([]Bound, 0, len(specs))
	for _, spec := range specs {
		a, ok := r.actions[spec.Name]
		if !ok {
			return nil, &UnknownActionError{Folder: folder, Action: spec.Name}
		}
		opts := Options(spec.Options)
		if opts == nil {
			opts = Options{}
		}
		bound = append(bound, Bound{Name: spec.Name, Options: opts, action: a})
	}
	return bound, nil
}

// Run executes the named action once.
func (r *Registry) Run(ctx context.Context, name string, opts Options, c *Context) error {
	bound, err := r.Resolve(c.Folder, []folderconfig.ActionSpec{{Name: name, Options: opts}})
	if err != nil {
		return err
	}
	return bound[0].Run(ctx, c)
}

// Run executes the bound action.
func (b Bound) Run(ctx context.Context, c *Context) error {
	hclog.FromContext(ctx).Debug("running action", "folder", c.Folder, "action", b.Name)
	if err := b.action.Run(ctx, b.Options, c); err != nil {
		return fmt.Errorf("action %s in %s: %w", b.Name, c.Folder, err)
	}
	return nil
}

// String returns option key as a string. A missing key yields "" unless
// required is set.
func (o Options) String(c *Context, action, key string, required bool) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		if required {
			return "", &OptionsError{Folder: c.Folder, Action: action, Option: key, Reason: "is required"}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &OptionsError{Folder: c.Folder, Action: action, Option: key, Reason: "must be a string"}
	}
	return s, nil
}
