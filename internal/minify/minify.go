// Package minify provides the source transforms applied to files selected by
// a folder's minify rules.
package minify

import (
	"fmt"
	"path"
	"strings"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	jsonmin "github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// Minifier transforms source text. name is the archive path of the file and
// is used for dispatch and error messages only.
type Minifier interface {
	Minify(name, src string) (string, error)
}

// Func adapts a function to the Minifier interface.
type Func func(name, src string) (string, error)

func (f Func) Minify(name, src string) (string, error) { return f(name, src) }

// Identity returns its input unchanged.
var Identity = Func(func(_, src string) (string, error) { return src, nil })

// Error is returned when a file cannot be minified, usually because of a
// syntax error in the source.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("minify: %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ByExtension dispatches on the lowercase file extension and falls back to
// a default minifier for everything else.
type ByExtension struct {
	byExt    map[string]Minifier
	fallback Minifier
}

// NewByExtension returns a dispatcher using fallback for unregistered
// extensions.
func NewByExtension(fallback Minifier) *ByExtension {
	return &ByExtension{byExt: map[string]Minifier{}, fallback: fallback}
}

// Register associates ext (with leading dot) with m.
func (b *ByExtension) Register(ext string, m Minifier) {
	b.byExt[strings.ToLower(ext)] = m
}

func (b *ByExtension) Minify(name, src string) (string, error) {
	m, ok := b.byExt[strings.ToLower(path.Ext(name))]
	if !ok {
		m = b.fallback
	}
	out, err := m.Minify(name, src)
	if err != nil {
		return "", &Error{Name: name, Err: err}
	}
	return out, nil
}

// webMediaTypes maps extensions handled by the web-format minifiers to the
// media type they are registered under.
var webMediaTypes = map[string]string{
	".css":  "text/css",
	".htm":  "text/html",
	".html": "text/html",
	".js":   "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".xml":  "text/xml",
}

// Default returns the dispatcher used by the CLI: Lua for .lua and unknown
// extensions, web-format minifiers for the rest.
func Default() *ByExtension {
	m := tdminify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", jsonmin.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFunc("text/xml", xml.Minify)

	d := NewByExtension(Lua)
	d.Register(".lua", Lua)
	for ext, mediaType := range webMediaTypes {
		mediaType := mediaType
		d.Register(ext, Func(func(_, src string) (string, error) {
			return m.String(mediaType, src)
		}))
	}
	return d
}
