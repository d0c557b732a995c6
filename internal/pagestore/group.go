package pagestore

import (
	"context"
	"fmt"
	"strings"
)

// GroupResolver expands a group page into the names of its members.
// Members are the top-level bullet lines of the group page:
//
//	 * FrontPage
//	 * HelpContents
type GroupResolver struct {
	store Store
}

// NewGroupResolver returns a resolver reading group pages from store.
func NewGroupResolver(store Store) *GroupResolver {
	return &GroupResolver{store: store}
}

// Members returns the member page names of group in page order, without
// duplicates.
func (g *GroupResolver) Members(ctx context.Context, group string) ([]string, error) {
	lines, err := g.store.Lines(ctx, group, 0)
	if err != nil {
		return nil, fmt.Errorf("read group page %q: %w", group, err)
	}
	return ParseGroupMembers(lines), nil
}

// ParseGroupMembers extracts member names from the lines of a group page.
func ParseGroupMembers(lines []string) []string {
	seen := make(map[string]bool)
	var members []string
	for _, line := range lines {
		rest, ok := strings.CutPrefix(line, " * ")
		if !ok {
			continue
		}
		name := strings.TrimSpace(rest)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		members = append(members, name)
	}
	return members
}
