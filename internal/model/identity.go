package model

import "strings"

const (
	lineSeparator = '|'
	lineEscape    = '\\'
)

// PackLine joins items into a single token, escaping separators and
// backslashes inside the items.
func PackLine(items []string) string {
	escaped := make([]string, len(items))
	for i, item := range items {
		item = strings.ReplaceAll(item, `\`, `\\`)
		escaped[i] = strings.ReplaceAll(item, "|", `\|`)
	}
	return strings.Join(escaped, "|")
}

// UnpackLine splits a token produced by PackLine.
// An empty token unpacks to no items.
func UnpackLine(line string) []string {
	if line == "" {
		return nil
	}
	var (
		items   []string
		current strings.Builder
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == lineEscape:
			escaped = true
		case r == lineSeparator:
			items = append(items, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(items, current.String())
}

// Identity names a wiki instance: its stable IWID and, unless the wiki is
// anonymous, its interwiki name.
type Identity struct {
	IWID          string
	InterwikiName string
}

// IsAnonymous reports whether the wiki publishes no interwiki name.
func (id Identity) IsAnonymous() bool {
	return id.InterwikiName == ""
}

// Token packs the identity into the string stored in tags.
func (id Identity) Token() string {
	if id.IsAnonymous() {
		return PackLine([]string{id.IWID})
	}
	return PackLine([]string{id.IWID, id.InterwikiName})
}

// ParseIdentity unpacks a token produced by Identity.Token.
func ParseIdentity(token string) Identity {
	items := UnpackLine(token)
	var id Identity
	if len(items) > 0 {
		id.IWID = items[0]
	}
	if len(items) > 1 {
		id.InterwikiName = items[1]
	}
	return id
}

// DisplayName returns the interwiki name, or the IWID for anonymous wikis.
func (id Identity) DisplayName() string {
	if id.IsAnonymous() {
		return id.IWID
	}
	return id.InterwikiName
}

// IdentityTokensMatch reports whether two identity tokens refer to the same
// wiki. Tokens match on IWID, or on interwiki name when both carry one, so
// tags survive a remote that renames itself or starts publishing a name.
func IdentityTokensMatch(a, b string) bool {
	ia, ib := UnpackLine(a), UnpackLine(b)
	if len(ia) == 0 || len(ib) == 0 {
		return false
	}
	if ia[0] == ib[0] {
		return true
	}
	return len(ia) == 2 && len(ib) == 2 && ia[1] == ib[1]
}
