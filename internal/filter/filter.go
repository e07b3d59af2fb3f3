// Package filter evaluates ignore and minify glob rules against
// archive-relative paths.
//
// Patterns use doublestar semantics: "*" stays within one path segment,
// "**" crosses segments, and names starting with "." are matched like any
// other name.
package filter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pienkuu/pienkuu/internal/folderconfig"
)

// GlobalIgnores apply archive-wide and are never folder-prefixed.
var GlobalIgnores = []string{
	"*/.git/**",
	"*/" + folderconfig.FileName,
}

// Set holds the archive-global rules derived from one folder's config.
type Set struct {
	Ignore []string
	Minify []string
}

// Resolve rewrites folder-local ignore and minify rules of cfg into
// archive-global rules and prepends the global ignores.
func Resolve(folder string, cfg *folderconfig.Config) Set {
	ignore := make([]string, 0, len(GlobalIgnores)+len(cfg.Ignore))
	ignore = append(ignore, GlobalIgnores...)
	ignore = append(ignore, Rewrite(folder, cfg.Ignore)...)

	return Set{
		Ignore: ignore,
		Minify: Rewrite(folder, cfg.Minify),
	}
}

// Rewrite prefixes every pattern with folder so it matches archive paths.
func Rewrite(folder string, patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, folder+"/"+strings.TrimPrefix(p, "./"))
	}
	return out
}

// MatchesAny reports whether p matches at least one pattern. Malformed
// patterns never match.
func MatchesAny(p string, patterns []string) bool {
	_, ok := firstMatch(p, patterns)
	return ok
}

func firstMatch(p string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, p); matched {
			return pattern, true
		}
	}
	return "", false
}

// IsIgnored reports whether p is excluded from the archive.
func (s Set) IsIgnored(p string) bool {
	return MatchesAny(p, s.Ignore)
}

// ShouldMinify reports whether p is selected for minification.
func (s Set) ShouldMinify(p string) bool {
	return MatchesAny(p, s.Minify)
}

// Explain returns the first ignore pattern matching p.
func (s Set) Explain(p string) (string, bool) {
	return firstMatch(p, s.Ignore)
}

// BadPatternError names a pattern doublestar cannot parse.
type BadPatternError struct {
	Pattern string
}

func (e *BadPatternError) Error() string {
	return fmt.Sprintf("filter: malformed glob pattern %q", e.Pattern)
}

// Validate checks every ignore and minify pattern of s.
func (s Set) Validate() error {
	for _, list := range [][]string{s.Ignore, s.Minify} {
		for _, pattern := range list {
			if !doublestar.ValidatePattern(pattern) {
				return &BadPatternError{Pattern: pattern}
			}
		}
	}
	return nil
}
