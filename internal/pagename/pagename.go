// Package pagename maps concrete wiki page names to the canonical names used as
// the cross-wiki merge key, and page names to file-system safe directory names.
package pagename

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Normalize strips prefix from name.
// It returns ok=false when prefix is set and name does not start with it.
// An empty prefix returns name unchanged.
func Normalize(name, prefix string) (canonical string, ok bool) {
	if prefix == "" {
		return name, true
	}
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	return name[len(prefix):], true
}

// Denormalize is the inverse of Normalize.
func Denormalize(canonical, prefix string) string {
	return prefix + canonical
}

var unsafeRun = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// QuoteFS returns a representation of name that is safe to use as a single
// path element on any file system. Spaces become underscores and every other
// run of unsafe bytes is written as lowercase hex inside parentheses, so
// "Sub/Page One" becomes "Sub(2f)Page_One".
func QuoteFS(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return unsafeRun.ReplaceAllStringFunc(name, func(run string) string {
		var sb strings.Builder
		sb.WriteByte('(')
		for i := 0; i < len(run); i++ {
			fmt.Fprintf(&sb, "%02x", run[i])
		}
		sb.WriteByte(')')
		return sb.String()
	})
}

var quotedRun = regexp.MustCompile(`\(([^)]*)\)`)

// InvalidFileNameError reports a quoted file name that cannot be decoded.
type InvalidFileNameError struct {
	Name string
}

func (e *InvalidFileNameError) Error() string {
	return fmt.Sprintf("invalid quoted file name %q", e.Name)
}

// UnquoteFS reverses QuoteFS. Underscores are turned back into spaces.
func UnquoteFS(filename string) (string, error) {
	var sb strings.Builder
	last := 0
	for _, loc := range quotedRun.FindAllStringSubmatchIndex(filename, -1) {
		if strings.ContainsAny(filename[last:loc[0]], "()") {
			return "", &InvalidFileNameError{Name: filename}
		}
		sb.WriteString(filename[last:loc[0]])
		last = loc[1]
		group := filename[loc[2]:loc[3]]
		if len(group) == 0 || len(group)%2 != 0 {
			return "", &InvalidFileNameError{Name: filename}
		}
		for i := 0; i < len(group); i += 2 {
			b, err := strconv.ParseUint(group[i:i+2], 16, 8)
			if err != nil {
				return "", &InvalidFileNameError{Name: filename}
			}
			sb.WriteByte(byte(b))
		}
	}
	if strings.ContainsAny(filename[last:], "()") {
		return "", &InvalidFileNameError{Name: filename}
	}
	sb.WriteString(filename[last:])
	return strings.ReplaceAll(sb.String(), "_", " "), nil
}
