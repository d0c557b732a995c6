package endpoint

import (
	"context"
	"fmt"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagename"
	"github.com/klauern/wikisync/internal/pagestore"
)

// Local is the wiki this process runs against.
type Local struct {
	store    pagestore.Store
	identity model.Identity
	prefix   string
	pageList []string
	groups   *pagestore.GroupResolver
}

// NewLocal returns the local endpoint. pageList, if non-nil, holds the
// canonical names the listing is restricted to.
func NewLocal(store pagestore.Store, identity model.Identity, prefix string, pageList []string) *Local {
	return &Local{
		store:    store,
		identity: identity,
		prefix:   prefix,
		pageList: pageList,
		groups:   pagestore.NewGroupResolver(store),
	}
}

// InterwikiName implements Endpoint.
func (l *Local) InterwikiName() string { return l.identity.InterwikiName }

// IWID implements Endpoint.
func (l *Local) IWID() string { return l.identity.IWID }

// Identity returns the local wiki identity.
func (l *Local) Identity() model.Identity { return l.identity }

// Prefix returns the configured local name prefix.
func (l *Local) Prefix() string { return l.prefix }

// Store returns the page store backing the endpoint.
func (l *Local) Store() pagestore.Store { return l.store }

// Pages implements Endpoint. Deleted pages and pages outside the prefix are
// not listed. The local wiki is always writable, so opts has no effect.
func (l *Local) Pages(ctx context.Context, _ ListOptions) ([]model.SyncPage, error) {
	infos, err := l.store.List(ctx, pagestore.ListFilter{Prefix: l.prefix})
	if err != nil {
		return nil, fmt.Errorf("list local pages: %w", err)
	}
	pages := make([]model.SyncPage, 0, len(infos))
	for _, info := range infos {
		canonical, ok := pagename.Normalize(info.Name, l.prefix)
		if !ok || canonical == "" || !allowed(l.pageList, canonical) {
			continue
		}
		pages = append(pages, model.SyncPage{Name: canonical, LocalRevision: info.Revision, LocalName: info.Name})
	}
	return pages, nil
}

// GroupMembers expands group pages into the canonical names of their member
// pages. Members outside the local prefix are dropped.
func (l *Local) GroupMembers(ctx context.Context, groups []string) ([]string, error) {
	var names []string
	for _, group := range groups {
		members, err := l.groups.Members(ctx, group)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			if canonical, ok := pagename.Normalize(member, l.prefix); ok && canonical != "" {
				names = append(names, canonical)
			}
		}
	}
	return names, nil
}
