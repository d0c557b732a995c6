package sync

import (
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
)

// MergeResult represents the outcome of a merge operation.
type MergeResult struct {
	// Success indicates if the merge completed without conflicts.
	Success bool

	// Content is the merged content (may contain conflict markers if not successful).
	Content string

	// Conflicts contains details about any conflicts encountered.
	Conflicts []MergeConflict
}

// HasConflictMarkers reports whether Content carries conflict markers.
func (r MergeResult) HasConflictMarkers() bool {
	return len(r.Conflicts) > 0
}

// MergeConflict represents a specific conflict region in the merge.
type MergeConflict struct {
	// StartLine is the line number where the conflict starts.
	StartLine int

	// EndLine is the line number where the conflict ends.
	EndLine int

	// RemoteContent is the content from the remote version.
	RemoteContent string

	// LocalContent is the content from the local version.
	LocalContent string

	// BaseContent is the content from the base version.
	BaseContent string
}

// Merger merges page bodies line by line.
type Merger struct {
	// ConflictMarkerStart is the marker for the start of a conflict.
	ConflictMarkerStart string

	// ConflictMarkerMiddle is the marker separating versions.
	ConflictMarkerMiddle string

	// ConflictMarkerEnd is the marker for the end of a conflict.
	ConflictMarkerEnd string
}

// NewMerger creates a new merger with default conflict markers.
func NewMerger() *Merger {
	return &Merger{
		ConflictMarkerStart:  model.ConflictMarkerStart,
		ConflictMarkerMiddle: model.ConflictMarkerMiddle,
		ConflictMarkerEnd:    model.ConflictMarkerEnd,
	}
}

// ThreeWayMerge merges the remote and local versions of a page that both
// descend from base. Changes made on only one side are taken as they are;
// overlapping changes that differ become conflict blocks holding the remote
// lines first and the local lines second.
func (m *Merger) ThreeWayMerge(page, base, remote, local string) MergeResult {
	logging.Debug("starting three-way merge",
		logging.Page(page),
		logging.Operation("merge"),
		slog.Bool("has_base", base != ""),
	)

	result := m.mergeLines(splitLines(base), splitLines(remote), splitLines(local))

	logging.Debug("three-way merge completed",
		logging.Page(page),
		slog.Bool("success", result.Success),
		logging.Count(len(result.Conflicts)),
	)
	return result
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(s, "\n")
}

// Change is a replacement of base[BaseStart:BaseEnd] by NewLines.
type Change struct {
	BaseStart int
	BaseEnd   int
	NewLines  []string
}

// mergeLines walks the changes of both sides in base order. Changes that
// overlap or touch are grouped into one region and resolved together.
func (m *Merger) mergeLines(base, remote, local []string) MergeResult {
	result := MergeResult{Success: true}
	remoteChanges := m.findChanges(base, remote)
	localChanges := m.findChanges(base, local)

	var merged []string
	pos, ri, li := 0, 0, 0
	for ri < len(remoteChanges) || li < len(localChanges) {
		start := len(base) + 1
		if ri < len(remoteChanges) {
			start = remoteChanges[ri].BaseStart
		}
		if li < len(localChanges) {
			start = min(start, localChanges[li].BaseStart)
		}
		merged = append(merged, base[pos:start]...)

		end := start
		var regionRemote, regionLocal []Change
		for grew := true; grew; {
			grew = false
			if ri < len(remoteChanges) && remoteChanges[ri].BaseStart <= end && (len(regionRemote)+len(regionLocal) == 0 || overlaps(remoteChanges[ri], start, end)) {
				regionRemote = append(regionRemote, remoteChanges[ri])
				end = max(end, remoteChanges[ri].BaseEnd)
				ri++
				grew = true
			}
			if li < len(localChanges) && localChanges[li].BaseStart <= end && (len(regionRemote)+len(regionLocal) == 0 || overlaps(localChanges[li], start, end)) {
				regionLocal = append(regionLocal, localChanges[li])
				end = max(end, localChanges[li].BaseEnd)
				li++
				grew = true
			}
		}

		remoteVersion := applyRegion(base, start, end, regionRemote)
		localVersion := applyRegion(base, start, end, regionLocal)
		switch {
		case len(regionLocal) == 0:
			merged = append(merged, remoteVersion...)
		case len(regionRemote) == 0:
			merged = append(merged, localVersion...)
		case slices.Equal(remoteVersion, localVersion):
			merged = append(merged, remoteVersion...)
		default:
			result.Success = false
			conflict := MergeConflict{
				StartLine:     len(merged) + 1,
				RemoteContent: strings.Join(remoteVersion, ""),
				LocalContent:  strings.Join(localVersion, ""),
				BaseContent:   strings.Join(base[start:end], ""),
			}
			merged = append(merged, m.ConflictMarkerStart+"\n")
			merged = append(merged, terminated(remoteVersion)...)
			merged = append(merged, m.ConflictMarkerMiddle+"\n")
			merged = append(merged, terminated(localVersion)...)
			merged = append(merged, m.ConflictMarkerEnd+"\n")
			conflict.EndLine = len(merged)
			result.Conflicts = append(result.Conflicts, conflict)
		}
		pos = end
	}
	merged = append(merged, base[pos:]...)

	result.Content = strings.Join(merged, "")
	return result
}

// overlaps reports whether c touches the region [start, end). Two insertions
// at the same base position also overlap.
func overlaps(c Change, start, end int) bool {
	if c.BaseStart < end {
		return true
	}
	return c.BaseStart == end && (c.BaseStart == c.BaseEnd || start == end)
}

// applyRegion returns base[start:end] with changes applied.
func applyRegion(base []string, start, end int, changes []Change) []string {
	var out []string
	pos := start
	for _, c := range changes {
		out = append(out, base[pos:c.BaseStart]...)
		out = append(out, c.NewLines...)
		pos = c.BaseEnd
	}
	return append(out, base[pos:end]...)
}

// terminated makes sure the last line ends in a newline so a following
// marker starts on its own line.
func terminated(lines []string) []string {
	if len(lines) == 0 || strings.HasSuffix(lines[len(lines)-1], "\n") {
		return lines
	}
	out := slices.Clone(lines)
	out[len(out)-1] += "\n"
	return out
}

// findChanges identifies changes between base and derived version.
func (m *Merger) findChanges(base, derived []string) []Change {
	var changes []Change
	pairs := m.longestCommonSubsequence(base, derived)

	baseIdx, derivedIdx := 0, 0
	for _, p := range append(pairs, [2]int{len(base), len(derived)}) {
		if p[0] > baseIdx || p[1] > derivedIdx {
			changes = append(changes, Change{
				BaseStart: baseIdx,
				BaseEnd:   p[0],
				NewLines:  derived[derivedIdx:p[1]],
			})
		}
		baseIdx, derivedIdx = p[0]+1, p[1]+1
	}
	return changes
}

// longestCommonSubsequence returns the index pairs (i, j) with a[i] == b[j]
// of a longest common subsequence of two string slices. Each distinct line is
// hashed to one rune and the rune sequences are aligned with go-diff's Myers
// diff, which needs memory linear in the input.
func (m *Merger) longestCommonSubsequence(a, b []string) [][2]int {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	ra, rb := linesToRunes(a, b)
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	var pairs [][2]int
	i, j := 0, 0
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for k := range n {
				pairs = append(pairs, [2]int{i + k, j + k})
			}
			i += n
			j += n
		case diffmatchpatch.DiffDelete:
			i += n
		case diffmatchpatch.DiffInsert:
			j += n
		}
	}
	return pairs
}

// linesToRunes maps every distinct line of a and b to its own rune. Surrogate
// code points are skipped so each rune survives the round trip through the
// diff's string text.
func linesToRunes(a, b []string) ([]rune, []rune) {
	ids := make(map[string]rune, len(a))
	next := rune(1)
	encode := func(lines []string) []rune {
		out := make([]rune, len(lines))
		for i, line := range lines {
			r, ok := ids[line]
			if !ok {
				r = next
				ids[line] = r
				next++
				if next == 0xD800 {
					next = 0xE000
				}
			}
			out[i] = r
		}
		return out
	}
	return encode(a), encode(b)
}

// CommonBase returns the lines remote and local share, in order. It stands
// in for the missing ancestor when two copies of a page meet for the first
// time, so lines present on one side only are kept rather than conflicting.
func (m *Merger) CommonBase(remote, local string) string {
	r, l := splitLines(remote), splitLines(local)
	var sb strings.Builder
	for _, p := range m.longestCommonSubsequence(r, l) {
		sb.WriteString(r[p[0]])
	}
	return sb.String()
}
