package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/pienkuu/pienkuu/internal/publish"
	"github.com/pienkuu/pienkuu/internal/target"
)

type stubFetcher struct {
	bodies map[string][]byte
}

func (s *stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	body, ok := s.bodies[url]
	if !ok {
		return nil, fmt.Errorf("no stub for %s", url)
	}
	return body, nil
}

// run is a harness around Execute with an in-memory filesystem.
type run struct {
	t      *testing.T
	fsys   afero.Fs
	env    map[string]string
	stdout bytes.Buffer
	stderr bytes.Buffer
	code   int
}

func newRun(t *testing.T, files map[string]string) *run {
	t.Helper()
	r := &run{t: t, fsys: afero.NewMemMapFs(), env: map[string]string{}}
	for p, body := range files {
		if err := afero.WriteFile(r.fsys, p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	t.Cleanup(target.ResetSharedMemoryTargets)
	return r
}

func (r *run) exec(args ...string) *run {
	r.t.Helper()
	r.stdout.Reset()
	r.stderr.Reset()
	r.code = Execute(context.Background(), args, Dependencies{
		Fs:      r.fsys,
		Stdout:  &r.stdout,
		Stderr:  &r.stderr,
		Getenv:  func(k string) string { return r.env[k] },
		Now:     func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) },
		Fetcher: &stubFetcher{bodies: map[string][]byte{"http://cdn/lib.lua": []byte("return {}")}},
	})
	return r
}

func (r *run) exists(p string) bool {
	ok, err := afero.Exists(r.fsys, p)
	if err != nil {
		r.t.Fatalf("exists %s: %v", p, err)
	}
	return ok
}

func (r *run) zipEntries(p string) map[string]string {
	r.t.Helper()
	data, err := afero.ReadFile(r.fsys, p)
	if err != nil {
		r.t.Fatalf("read %s: %v", p, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		r.t.Fatalf("open zip %s: %v", p, err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			r.t.Fatalf("open entry %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			r.t.Fatalf("read entry %s: %v", f.Name, err)
		}
		rc.Close()
		out[f.Name] = buf.String()
	}
	return out
}

var project = map[string]string{
	"hud/pienkuu.json": `{
		// packaged after lib
		"dependencies": ["lib"],
		"ignore": ["notes/**"],
		"minify": ["**/*.lua"],
		"actions": [
			["print", {"text": "building hud"}],
			["download", {"url": "http://cdn/lib.lua", "target": "vendor/"}]
		]
	}`,
	"hud/main.lua":      "-- entry point\nlocal x = 1\nreturn x\n",
	"hud/notes/todo.md": "secret",
	"lib/pienkuu.json":  `{}`,
	"lib/util.lua":      "return 1\n",
}

// ---------------------------------------------------------------------------
// Arguments
// ---------------------------------------------------------------------------

func TestExecute_MissingFolder(t *testing.T) {
	r := newRun(t, nil).exec()

	if r.code != 1 {
		t.Errorf("exit code = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr.String(), "please provide a folder name") {
		t.Errorf("stderr = %q, want usage hint", r.stderr.String())
	}
}

func TestExecute_Version(t *testing.T) {
	r := newRun(t, nil).exec("--version")

	if r.code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", r.code, r.stderr.String())
	}
	if !strings.Contains(r.stdout.String(), Version) {
		t.Errorf("stdout = %q, want version %q", r.stdout.String(), Version)
	}
}

// ---------------------------------------------------------------------------
// Packaging
// ---------------------------------------------------------------------------

func TestExecute_WritesArchive(t *testing.T) {
	r := newRun(t, project).exec("hud")

	if r.code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", r.code, r.stderr.String())
	}
	if !strings.Contains(r.stdout.String(), "hud: building hud\n") {
		t.Errorf("stdout = %q, want print action output", r.stdout.String())
	}

	got := r.zipEntries("hud.zip")
	want := map[string]string{
		"lib/util.lua":       "return 1\n",
		"hud/main.lua":       "local x=1 return x",
		"hud/vendor/lib.lua": "return {}",
	}
	if len(got) != len(want) {
		t.Errorf("entries = %v, want %v", keys(got), keys(want))
	}
	for p, body := range want {
		if got[p] != body {
			t.Errorf("%s = %q, want %q", p, got[p], body)
		}
	}
}

func TestExecute_MissingDependencyConfigWritesNothing(t *testing.T) {
	files := map[string]string{
		"hud/pienkuu.json": `{"dependencies": ["lib"]}`,
		"hud/main.lua":     "return 1",
		"lib/util.lua":     "return 2",
		"hud.zip":          "stale archive",
	}
	r := newRun(t, files).exec("hud")

	if r.code != 1 {
		t.Errorf("exit code = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr.String(), "lib") {
		t.Errorf("stderr = %q, want it to name the folder missing its config", r.stderr.String())
	}
	if r.exists("hud.zip") {
		t.Error("hud.zip exists after a failed run")
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	files := map[string]string{
		"hud/pienkuu.json": `{"actions": [["frobnicate"]]}`,
	}
	r := newRun(t, files).exec("hud")

	if r.code != 1 {
		t.Errorf("exit code = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr.String(), `invalid action name "frobnicate"`) {
		t.Errorf("stderr = %q", r.stderr.String())
	}
}

func TestExecute_InvalidFolder(t *testing.T) {
	r := newRun(t, nil).exec("../outside")
	if r.code != 1 {
		t.Errorf("exit code = %d, want 1", r.code)
	}
}

func TestExecute_VerboseLogsToStderr(t *testing.T) {
	r := newRun(t, project).exec("hud", "-v")

	if r.code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", r.code, r.stderr.String())
	}
	if !strings.Contains(r.stderr.String(), "composed folder") {
		t.Errorf("stderr = %q, want debug/info logs", r.stderr.String())
	}
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func TestExecute_SettingsFromEnv(t *testing.T) {
	files := map[string]string{
		"lib/pienkuu.json": `{}`,
		"lib/util.lua":     "return 1",
		"settings.yaml":    "archive:\n  compression_level: 99\n",
	}
	r := newRun(t, files)
	r.env[SettingsEnv] = "settings.yaml"
	r.exec("lib")

	if r.code != 1 {
		t.Errorf("exit code = %d, want 1 for invalid settings", r.code)
	}
	if !strings.Contains(r.stderr.String(), "compression_level") {
		t.Errorf("stderr = %q", r.stderr.String())
	}
	if r.exists("lib.zip") {
		t.Error("lib.zip written despite invalid settings")
	}
}

// ---------------------------------------------------------------------------
// Dry run and publishing
// ---------------------------------------------------------------------------

const memorySettings = "publish:\n  retain: 2\n  targets:\n    - name: mem\n      type: memory\n"

func TestExecute_DryRun(t *testing.T) {
	files := copyFiles(project)
	files["hud.zip"] = "previous"
	r := newRun(t, files).exec("hud", "--dry-run")

	if r.code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", r.code, r.stderr.String())
	}
	out := r.stdout.String()
	for _, want := range []string{"# hud.zip would be written", "hud/vendor/lib.lua", "lib/util.lua", "3 entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	data, err := afero.ReadFile(r.fsys, "hud.zip")
	if err != nil || string(data) != "previous" {
		t.Errorf("dry run touched hud.zip: (%q, %v)", data, err)
	}
}

func TestExecute_Publish(t *testing.T) {
	files := copyFiles(project)
	files["settings.yaml"] = memorySettings
	r := newRun(t, files).exec("hud", "--settings", "settings.yaml", "--publish")

	if r.code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", r.code, r.stderr.String())
	}
	if !r.exists("hud.zip") {
		t.Error("hud.zip not written locally")
	}

	mem := target.SharedMemoryTarget("mem")
	latest, err := publish.Latest(context.Background(), mem, "hud")
	if err != nil || !strings.HasPrefix(latest, "rel_20261015T090000Z_") {
		t.Fatalf("LATEST = (%q, %v), want release stamped at the fixed clock", latest, err)
	}
	if !strings.Contains(r.stdout.String(), "published "+latest+" to mem") {
		t.Errorf("stdout = %q", r.stdout.String())
	}

	local, _ := afero.ReadFile(r.fsys, "hud.zip")
	remote, _, err := mem.Get(context.Background(), "hud/releases/"+latest+"/hud.zip")
	if err != nil || !bytes.Equal(local, remote) {
		t.Errorf("published archive differs from local archive (err %v)", err)
	}

	// A dry run against the same tree now matches the published release.
	r.exec("hud", "--settings", "settings.yaml", "--dry-run", "--publish")
	if r.code != 0 {
		t.Fatalf("dry run exit code = %d, stderr = %s", r.code, r.stderr.String())
	}
	if !strings.Contains(r.stdout.String(), "(identical to "+latest+")") {
		t.Errorf("dry run stdout = %q, want identical target action", r.stdout.String())
	}
}

func TestExecute_PublishWithoutTargets(t *testing.T) {
	r := newRun(t, project).exec("hud", "--publish")

	if r.code != 1 {
		t.Errorf("exit code = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr.String(), "no targets configured") {
		t.Errorf("stderr = %q", r.stderr.String())
	}
	if !r.exists("hud.zip") {
		t.Error("local archive should survive a publish failure")
	}
}

func copyFiles(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
