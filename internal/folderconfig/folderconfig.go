// Package folderconfig loads the per-folder pienkuu.json configuration.
//
// The file is JSON extended with comments and trailing commas. All keys are
// optional; absent lists decode as empty.
package folderconfig

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
)

// FileName is the configuration file looked up inside every folder.
const FileName = "pienkuu.json"

// Config is the parsed configuration of a single folder.
type Config struct {
	Dependencies []string     `json:"dependencies"`
	Ignore       []string     `json:"ignore"`
	Minify       []string     `json:"minify"`
	Actions      []ActionSpec `json:"actions"`
}

// ActionSpec is one declared action. On disk it is a two-element array
// ["name", {options}]; the options element may be omitted.
type ActionSpec struct {
	Name    string
	Options map[string]any
}

// UnmarshalJSON decodes the [name, options] array form.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("action must be an array [name, options]: %w", err)
	}
	if len(raw) == 0 || len(raw) > 2 {
		return fmt.Errorf("action must have one or two elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &a.Name); err != nil {
		return fmt.Errorf("action name must be a string: %w", err)
	}

	a.Options = map[string]any{}
	if len(raw) == 2 {
		var opts map[string]any
		if err := json.Unmarshal(raw[1], &opts); err != nil {
			return fmt.Errorf("action %q options must be an object: %w", a.Name, err)
		}
		if opts != nil {
			a.Options = opts
		}
	}
	return nil
}

// NotFoundError is returned when a folder has no readable configuration file.
type NotFoundError struct {
	Folder string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("folderconfig: cannot read %s: %v", path.Join(e.Folder, FileName), e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ParseError is returned when the configuration file is not valid.
type ParseError struct {
	Folder string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("folderconfig: invalid %s: %v", path.Join(e.Folder, FileName), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Path returns the slash-separated location of folder's configuration file.
func Path(folder string) string {
	return path.Join(folder, FileName)
}

// Load reads and parses the configuration file of folder from fsys.
func Load(fsys afero.Fs, folder string) (*Config, error) {
	data, err := afero.ReadFile(fsys, Path(folder))
	if err != nil {
		return nil, &NotFoundError{Folder: folder, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Folder: folder, Err: err}
	}
	return cfg, nil
}

// Parse decodes configuration bytes. Missing lists are normalised to empty
// slices so callers never need nil checks.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, err
	}

	if cfg.Dependencies == nil {
		cfg.Dependencies = []string{}
	}
	if cfg.Ignore == nil {
		cfg.Ignore = []string{}
	}
	if cfg.Minify == nil {
		cfg.Minify = []string{}
	}
	if cfg.Actions == nil {
		cfg.Actions = []ActionSpec{}
	}
	return &cfg, nil
}
