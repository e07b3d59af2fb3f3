package folderconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func writeConfig(t *testing.T, fsys afero.Fs, folder, body string) {
	t.Helper()
	if err := afero.WriteFile(fsys, Path(folder), []byte(body), 0o644); err != nil {
		t.Fatalf("writing config for %s: %v", folder, err)
	}
}

func TestLoad_Full(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "proj", `{
		"dependencies": ["lib", "shared"],
		"ignore": ["assets/*.tmp"],
		"minify": ["src/*.lua"],
		"actions": [
			["print", {"text": "hello"}],
			["download", {"url": "http://x/y/file.bin", "target": "libs/"}]
		]
	}`)

	cfg, err := Load(fsys, "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := strings.Join(cfg.Dependencies, ","); got != "lib,shared" {
		t.Errorf("Dependencies = %q, want %q", got, "lib,shared")
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0] != "assets/*.tmp" {
		t.Errorf("Ignore = %v", cfg.Ignore)
	}
	if len(cfg.Minify) != 1 || cfg.Minify[0] != "src/*.lua" {
		t.Errorf("Minify = %v", cfg.Minify)
	}
	if len(cfg.Actions) != 2 {
		t.Fatalf("len(Actions) = %d, want 2", len(cfg.Actions))
	}
	if cfg.Actions[0].Name != "print" || cfg.Actions[0].Options["text"] != "hello" {
		t.Errorf("Actions[0] = %+v", cfg.Actions[0])
	}
	if cfg.Actions[1].Name != "download" || cfg.Actions[1].Options["target"] != "libs/" {
		t.Errorf("Actions[1] = %+v", cfg.Actions[1])
	}
}

func TestLoad_EmptyObjectDefaults(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "proj", `{}`)

	cfg, err := Load(fsys, "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dependencies == nil || cfg.Ignore == nil || cfg.Minify == nil || cfg.Actions == nil {
		t.Errorf("expected non-nil empty slices, got %+v", cfg)
	}
	if len(cfg.Dependencies)+len(cfg.Ignore)+len(cfg.Minify)+len(cfg.Actions) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoad_JSONCComments(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "proj", `{
		// shared helpers first
		"dependencies": ["lib",],
		/* nothing to hide */
		"ignore": [],
	}`)

	cfg, err := Load(fsys, "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Dependencies) != 1 || cfg.Dependencies[0] != "lib" {
		t.Errorf("Dependencies = %v, want [lib]", cfg.Dependencies)
	}
}

func TestLoad_ActionWithoutOptions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeConfig(t, fsys, "proj", `{"actions": [["print"], ["print", null]]}`)

	cfg, err := Load(fsys, "proj")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, a := range cfg.Actions {
		if a.Options == nil {
			t.Errorf("Actions[%d].Options is nil, want empty map", i)
		}
	}
}

func TestLoad_NotFound(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := Load(fsys, "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Load: got err = %v, want *NotFoundError", err)
	}
	if nf.Folder != "missing" {
		t.Errorf("Folder = %q, want %q", nf.Folder, "missing")
	}
	if !strings.Contains(err.Error(), "missing/pienkuu.json") {
		t.Errorf("error %q does not name the config path", err)
	}
}

func TestLoad_ParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"garbage":            `not json`,
		"wrong type":         `{"dependencies": "lib"}`,
		"action not array":   `{"actions": [{"name": "print"}]}`,
		"action name number": `{"actions": [[1, {}]]}`,
		"action too long":    `{"actions": [["print", {}, {}]]}`,
		"options not object": `{"actions": [["print", "text"]]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeConfig(t, fsys, "proj", body)

			_, err := Load(fsys, "proj")
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Load: got err = %v, want *ParseError", err)
			}
		})
	}
}
