// Package planformat renders the dry-run plan: what an archive would
// contain and, when publish targets are configured, how it differs from
// the release each target currently serves.
package planformat

import (
	"fmt"
	"sort"
	"strings"
)

// Action describes the type of change for a target or file.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
	ActionNoop    Action = "no-op"
)

// Entry is one file in the archive.
type Entry struct {
	Path      string
	SizeBytes int64
	Hash      string
}

// FileChange describes a single file-level diff against a published release.
type FileChange struct {
	Path    string
	Action  Action
	OldHash string // empty on create
	NewHash string // empty on destroy
}

// TargetAction describes what publishing would do on one target.
type TargetAction struct {
	TargetName    string
	Action        Action
	LatestRelease string // empty when the target has no release yet
	Changes       []FileChange
}

// Plan is the top-level container for dry-run output.
type Plan struct {
	ArchiveName string
	ContentHash string
	Overwrites  int
	Entries     []Entry
	Targets     []TargetAction
}

// Diff compares two path -> hash maps and returns the changes needed to go
// from previous to current, sorted by path.
func Diff(previous, current map[string]string) []FileChange {
	var out []FileChange
	for p, h := range current {
		old, ok := previous[p]
		switch {
		case !ok:
			out = append(out, FileChange{Path: p, Action: ActionCreate, NewHash: h})
		case old != h:
			out = append(out, FileChange{Path: p, Action: ActionUpdate, OldHash: old, NewHash: h})
		}
	}
	for p, h := range previous {
		if _, ok := current[p]; !ok {
			out = append(out, FileChange{Path: p, Action: ActionDestroy, OldHash: h})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// TargetActionFor builds the TargetAction for a target whose latest
// release has the given file hashes. latest == "" means no release exists.
func TargetActionFor(name, latest string, previous, current map[string]string) TargetAction {
	ta := TargetAction{TargetName: name, LatestRelease: latest}
	if latest == "" {
		ta.Action = ActionCreate
		ta.Changes = Diff(nil, current)
		return ta
	}
	ta.Changes = Diff(previous, current)
	if len(ta.Changes) == 0 {
		ta.Action = ActionNoop
	} else {
		ta.Action = ActionUpdate
	}
	return ta
}

// Format renders a Plan as a human-readable string for a terminal.
func Format(p *Plan) string {
	var b strings.Builder

	entries := append([]Entry(nil), p.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	var total int64
	width := 0
	for _, e := range entries {
		total += e.SizeBytes
		if len(e.Path) > width {
			width = len(e.Path)
		}
	}

	fmt.Fprintf(&b, "  # %s would be written\n", p.ArchiveName)
	fmt.Fprintf(&b, "  # content_hash: %s\n", p.ContentHash)
	if p.Overwrites > 0 {
		fmt.Fprintf(&b, "  # overwrites:   %d\n", p.Overwrites)
	}
	b.WriteString("\n")

	if len(entries) == 0 {
		b.WriteString("  No entries.\n")
	} else {
		b.WriteString("  Entries:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "    %-*s %10s  (%s)\n", width, e.Path, formatSize(e.SizeBytes), truncateHash(e.Hash))
		}
		fmt.Fprintf(&b, "\n  %d entries, %s total.\n", len(entries), formatSize(total))
	}

	if len(p.Targets) > 0 {
		b.WriteString("\n  Target actions:\n")
		for _, t := range p.Targets {
			writeTargetAction(&b, t)
		}
	}

	return b.String()
}

// FormatSummary returns a single-line summary of the plan.
func FormatSummary(p *Plan) string {
	var total int64
	for _, e := range p.Entries {
		total += e.SizeBytes
	}
	changed := 0
	for _, t := range p.Targets {
		if t.Action != ActionNoop {
			changed++
		}
	}
	return fmt.Sprintf("%s: %d entries, %s; %d of %d target(s) would change",
		p.ArchiveName, len(p.Entries), formatSize(total), changed, len(p.Targets))
}

func writeTargetAction(b *strings.Builder, t TargetAction) {
	adds, changes, deletes := classifyFiles(t.Changes)

	fmt.Fprintf(b, "    %s %s", actionSymbol(t.Action), t.TargetName)
	switch {
	case t.LatestRelease == "":
		b.WriteString(" (no previous release)")
	case t.Action == ActionNoop:
		fmt.Fprintf(b, " (identical to %s)", t.LatestRelease)
	default:
		fmt.Fprintf(b, " (+%d ~%d -%d files against %s)", len(adds), len(changes), len(deletes), t.LatestRelease)
	}
	b.WriteString("\n")

	if t.LatestRelease == "" {
		return
	}
	writeFileSection(b, "+", adds)
	writeFileSection(b, "~", changes)
	writeFileSection(b, "-", deletes)
}

func classifyFiles(files []FileChange) (adds, changes, deletes []FileChange) {
	for _, f := range files {
		switch f.Action {
		case ActionCreate:
			adds = append(adds, f)
		case ActionUpdate:
			changes = append(changes, f)
		case ActionDestroy:
			deletes = append(deletes, f)
		}
	}
	return
}

func writeFileSection(b *strings.Builder, symbol string, files []FileChange) {
	for _, f := range files {
		fmt.Fprintf(b, "        %s %s", symbol, f.Path)
		if f.NewHash != "" {
			fmt.Fprintf(b, "  (%s)", truncateHash(f.NewHash))
		}
		b.WriteString("\n")
	}
}

func actionSymbol(a Action) string {
	switch a {
	case ActionCreate:
		return "+"
	case ActionUpdate:
		return "~"
	case ActionDestroy:
		return "-"
	case ActionNoop:
		return " "
	default:
		return "?"
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// truncateHash shortens "sha256:abcdef..." to "sha256:abcdef01".
func truncateHash(h string) string {
	const prefix = "sha256:"
	if strings.HasPrefix(h, prefix) {
		hex := h[len(prefix):]
		if len(hex) > 8 {
			hex = hex[:8]
		}
		return prefix + hex
	}
	if len(h) > 15 {
		return h[:15]
	}
	return h
}
