package model

import "strings"

// Conflict markers written into a page body when a line merge cannot decide
// between the two sides.
const (
	ConflictMarkerStart  = "<<<<<<< REMOTE"
	ConflictMarkerMiddle = "======="
	ConflictMarkerEnd    = ">>>>>>> LOCAL"
)

// HasConflictMarkers reports whether body contains an unresolved conflict
// block.
func HasConflictMarkers(body string) bool {
	start := strings.Index(body, ConflictMarkerStart)
	if start < 0 {
		return false
	}
	return strings.Contains(body[start:], ConflictMarkerEnd)
}
