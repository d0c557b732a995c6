package model

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/klauern/wikisync/internal/pagename"
)

// SyncPage is one canonical page as seen by the local and the remote wiki.
//
// Revision numbers start at 1; a zero revision means the page is absent on
// that side, and an empty concrete name likewise. Two SyncPages are the same
// logical page when their canonical names are equal.
type SyncPage struct {
	// Name is the canonical, prefix-stripped name used as the merge key.
	Name string

	LocalRevision  int
	RemoteRevision int

	// LocalName and RemoteName are the concrete names stored on each side.
	LocalName  string
	RemoteName string

	// RemoteDeleted marks a remote page whose newest revision is a deletion.
	RemoteDeleted bool
}

// NewLocalPage returns a SyncPage that exists only in the local wiki.
func NewLocalPage(name string, revision int, localName string) (SyncPage, error) {
	sp := SyncPage{Name: name, LocalRevision: revision, LocalName: localName}
	return sp, sp.Validate()
}

// NewRemotePage returns a SyncPage that exists only in the remote wiki.
func NewRemotePage(name string, revision int, remoteName string) (SyncPage, error) {
	sp := SyncPage{Name: name, RemoteRevision: revision, RemoteName: remoteName}
	return sp, sp.Validate()
}

// Validate checks that the page exists on at least one side.
func (p SyncPage) Validate() error {
	if p.LocalRevision < 0 || p.RemoteRevision < 0 {
		return fmt.Errorf("page %q: negative revision", p.Name)
	}
	if p.LocalRevision == 0 && p.RemoteRevision == 0 {
		return fmt.Errorf("page %q: no revision on either side", p.Name)
	}
	if p.LocalName == "" && p.RemoteName == "" {
		return fmt.Errorf("page %q: no concrete name on either side", p.Name)
	}
	return nil
}

// IsOnlyLocal is true if the page is only in the local wiki.
func (p SyncPage) IsOnlyLocal() bool {
	return p.RemoteRevision == 0
}

// IsOnlyRemote is true if the page is only in the remote wiki.
func (p SyncPage) IsOnlyRemote() bool {
	return p.LocalRevision == 0
}

// IsOnBothSides is true if the page is in both wikis.
func (p SyncPage) IsOnBothSides() bool {
	return p.LocalRevision != 0 && p.RemoteRevision != 0
}

// Equal compares canonical names only.
func (p SyncPage) Equal(other SyncPage) bool {
	return p.Name == other.Name
}

// Compare orders pages lexicographically by canonical name.
func (p SyncPage) Compare(other SyncPage) int {
	return strings.Compare(p.Name, other.Name)
}

// WithMissingNames fills in whichever concrete name is unknown, deriving it
// from the canonical name and the prefix configured for that side.
func (p SyncPage) WithMissingNames(localPrefix, remotePrefix string) SyncPage {
	if p.LocalName == "" {
		p.LocalName = pagename.Denormalize(p.Name, localPrefix)
	}
	if p.RemoteName == "" {
		p.RemoteName = pagename.Denormalize(p.Name, remotePrefix)
	}
	return p
}

func (p SyncPage) String() string {
	s := fmt.Sprintf("%s[%s|%s]<%d:%d>", p.Name, p.LocalName, p.RemoteName, p.LocalRevision, p.RemoteRevision)
	if p.RemoteDeleted {
		s += " (deleted remotely)"
	}
	return s
}

// Merge combines a local and a remote listing into one page set keyed by
// canonical name. When both sides report the same canonical name the local
// entry is kept and only its remote fields are filled from the remote entry.
// The result is sorted by canonical name.
func Merge(local, remote []SyncPage) []SyncPage {
	byName := make(map[string]*SyncPage, len(local)+len(remote))
	for i := range local {
		sp := local[i]
		byName[sp.Name] = &sp
	}
	for _, sp := range remote {
		if existing, ok := byName[sp.Name]; ok {
			existing.RemoteRevision = sp.RemoteRevision
			existing.RemoteName = sp.RemoteName
			existing.RemoteDeleted = sp.RemoteDeleted
			continue
		}
		sp := sp
		byName[sp.Name] = &sp
	}

	merged := make([]SyncPage, 0, len(byName))
	for _, sp := range byName {
		merged = append(merged, *sp)
	}
	SortPages(merged)
	return merged
}

// SortPages sorts pages by canonical name in place.
func SortPages(pages []SyncPage) {
	slices.SortFunc(pages, SyncPage.Compare)
}

// Filter returns the pages whose canonical name satisfies keep.
func Filter(pages []SyncPage, keep func(name string) bool) []SyncPage {
	var out []SyncPage
	for _, sp := range pages {
		if keep(sp.Name) {
			out = append(out, sp)
		}
	}
	return out
}

// Names returns the canonical names of pages in order.
func Names(pages []SyncPage) []string {
	names := make([]string, 0, len(pages))
	for _, sp := range pages {
		names = append(names, sp.Name)
	}
	return names
}

func selectPages(pages []SyncPage, keep func(SyncPage) bool) iter.Seq[SyncPage] {
	return func(yield func(SyncPage) bool) {
		for _, sp := range pages {
			if keep(sp) && !yield(sp) {
				return
			}
		}
	}
}

// OnlyLocal iterates over pages that are only in the local wiki.
func OnlyLocal(pages []SyncPage) iter.Seq[SyncPage] {
	return selectPages(pages, SyncPage.IsOnlyLocal)
}

// OnlyRemote iterates over pages that are only in the remote wiki.
func OnlyRemote(pages []SyncPage) iter.Seq[SyncPage] {
	return selectPages(pages, SyncPage.IsOnlyRemote)
}

// OnBothSides iterates over pages that are in both wikis.
func OnBothSides(pages []SyncPage) iter.Seq[SyncPage] {
	return selectPages(pages, SyncPage.IsOnBothSides)
}

// Partition is the merged page set split into its three disjoint subsets.
type Partition struct {
	OnlyLocal   []SyncPage
	OnlyRemote  []SyncPage
	OnBothSides []SyncPage
}

// PartitionPages splits pages into local-only, remote-only and both-sides.
func PartitionPages(pages []SyncPage) Partition {
	return Partition{
		OnlyLocal:   slices.Collect(OnlyLocal(pages)),
		OnlyRemote:  slices.Collect(OnlyRemote(pages)),
		OnBothSides: slices.Collect(OnBothSides(pages)),
	}
}

// Len returns the number of pages across all three subsets.
func (p Partition) Len() int {
	return len(p.OnlyLocal) + len(p.OnlyRemote) + len(p.OnBothSides)
}
