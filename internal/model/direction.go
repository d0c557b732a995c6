package model

import (
	"fmt"
	"strings"
)

// Direction defines which way page content flows during reconciliation.
type Direction string

const (
	// DirectionUp pushes local changes to the remote wiki.
	DirectionUp Direction = "up"

	// DirectionDown pulls remote changes into the local wiki.
	DirectionDown Direction = "down"

	// DirectionBoth pulls remote changes first and then pushes the merged result.
	DirectionBoth Direction = "both"
)

// IsValid returns true if the direction is recognized.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionBoth:
		return true
	default:
		return false
	}
}

// AllDirections returns all supported directions.
func AllDirections() []Direction {
	return []Direction{DirectionUp, DirectionDown, DirectionBoth}
}

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// Pulls reports whether remote content is merged into the local wiki.
func (d Direction) Pulls() bool {
	return d == DirectionDown || d == DirectionBoth
}

// Pushes reports whether local content is sent to the remote wiki.
func (d Direction) Pushes() bool {
	return d == DirectionUp || d == DirectionBoth
}

// Description returns a human-readable description of the direction.
func (d Direction) Description() string {
	switch d {
	case DirectionUp:
		return "Push local changes to the remote wiki"
	case DirectionDown:
		return "Pull remote changes into the local wiki"
	case DirectionBoth:
		return "Pull remote changes, then push the merged result"
	default:
		return "Unknown direction"
	}
}

// ParseDirection parses a direction name. Parsing is case-insensitive.
// An empty string yields DirectionBoth.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DirectionBoth, nil
	}
	d := Direction(s)
	if !d.IsValid() {
		return "", fmt.Errorf("unknown direction %q (valid: up, down, both)", s)
	}
	return d, nil
}
