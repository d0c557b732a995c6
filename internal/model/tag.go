package model

import (
	"errors"
	"fmt"
	"slices"
)

// Tag records one completed merge step between a local page revision and a
// revision of the same page on a specific remote wiki.
type Tag struct {
	// RemoteWiki is the packed identity token of the remote wiki.
	RemoteWiki     string    `json:"remote_wiki"`
	RemoteRevision int       `json:"remote_rev"`
	LocalRevision  int       `json:"local_rev"`
	Direction      Direction `json:"direction"`
	CanonicalName  string    `json:"canonical_name"`
}

// NewTag builds a Tag and validates every field.
func NewTag(remoteWiki string, remoteRevision, localRevision int, direction Direction, canonicalName string) (Tag, error) {
	t := Tag{
		RemoteWiki:     remoteWiki,
		RemoteRevision: remoteRevision,
		LocalRevision:  localRevision,
		Direction:      direction,
		CanonicalName:  canonicalName,
	}
	return t, t.Validate()
}

// Validate checks that all fields are present and well-formed.
func (t Tag) Validate() error {
	var errs []error
	if t.RemoteWiki == "" {
		errs = append(errs, errors.New("remote wiki identity is required"))
	}
	if t.RemoteRevision < 0 {
		errs = append(errs, fmt.Errorf("remote revision %d is negative", t.RemoteRevision))
	}
	if t.LocalRevision < 0 {
		errs = append(errs, fmt.Errorf("local revision %d is negative", t.LocalRevision))
	}
	if !t.Direction.IsValid() {
		errs = append(errs, fmt.Errorf("invalid direction %q", t.Direction))
	}
	if t.CanonicalName == "" {
		errs = append(errs, errors.New("canonical name is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid tag: %w", errors.Join(errs...))
	}
	return nil
}

func (t Tag) String() string {
	return fmt.Sprintf("<Tag page=%q remote_wiki=%q remote_rev=%d local_rev=%d direction=%s>",
		t.CanonicalName, t.RemoteWiki, t.RemoteRevision, t.LocalRevision, t.Direction)
}

// MatchTags returns the tags whose remote identity matches token.
// An empty direction matches tags of every direction.
func MatchTags(tags []Tag, token string, direction Direction) []Tag {
	var matching []Tag
	for _, t := range tags {
		if !IdentityTokensMatch(t.RemoteWiki, token) {
			continue
		}
		if direction != "" && t.Direction != direction {
			continue
		}
		matching = append(matching, t)
	}
	return matching
}

// NewestTag returns the tag with the highest local revision. Ties go to the
// tag appended last. ok is false when tags is empty.
func NewestTag(tags []Tag) (newest Tag, ok bool) {
	if len(tags) == 0 {
		return Tag{}, false
	}
	sorted := slices.Clone(tags)
	slices.SortStableFunc(sorted, func(a, b Tag) int {
		return a.LocalRevision - b.LocalRevision
	})
	return sorted[len(sorted)-1], true
}
