package pagestore

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type revision struct {
	body    []byte
	deleted bool
	comment string
	savedAt time.Time
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	pages map[string][]revision
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{pages: make(map[string][]revision)}
}

func (m *Memory) revisionLocked(name string, rev int) (revision, error) {
	revs, ok := m.pages[name]
	if !ok {
		return revision{}, ErrNotFound
	}
	if rev == 0 {
		return revs[len(revs)-1], nil
	}
	if rev < 0 || rev > len(revs) {
		return revision{}, ErrRevisionNotFound
	}
	return revs[rev-1], nil
}

// RawBody implements Store.
func (m *Memory) RawBody(_ context.Context, name string, rev int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.revisionLocked(name, rev)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(r.body), nil
}

// Lines implements Store.
func (m *Memory) Lines(ctx context.Context, name string, rev int) ([]string, error) {
	body, err := m.RawBody(ctx, name, rev)
	if err != nil {
		return nil, err
	}
	return SplitLines(body), nil
}

// RealRevision implements Store.
func (m *Memory) RealRevision(_ context.Context, name string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs, ok := m.pages[name]
	if !ok {
		return 0, ErrNotFound
	}
	return len(revs), nil
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs, ok := m.pages[name]
	return ok && !revs[len(revs)-1].deleted, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, filter ListFilter) ([]PageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var infos []PageInfo
	for name, revs := range m.pages {
		info := PageInfo{Name: name, Revision: len(revs), Deleted: revs[len(revs)-1].deleted}
		if filter.keep(info) {
			infos = append(infos, info)
		}
	}
	slices.SortFunc(infos, func(a, b PageInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos, nil
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, name string, body []byte, expectedRev int, comment string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revs := m.pages[name]
	if expectedRev != len(revs) {
		return len(revs), ErrEditConflict
	}
	if len(revs) > 0 {
		current := revs[len(revs)-1]
		if !current.deleted && bytes.Equal(current.body, body) {
			return len(revs), ErrUnchanged
		}
	}
	m.pages[name] = append(revs, revision{body: bytes.Clone(body), comment: comment, savedAt: time.Now()})
	return len(revs) + 1, nil
}

// Delete implements Store. An expectedRev of 0 skips the conflict check.
func (m *Memory) Delete(_ context.Context, name string, expectedRev int, comment string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revs, ok := m.pages[name]
	if !ok || revs[len(revs)-1].deleted {
		return len(revs), ErrNotFound
	}
	if expectedRev != 0 && expectedRev != len(revs) {
		return len(revs), ErrEditConflict
	}
	m.pages[name] = append(revs, revision{deleted: true, comment: comment, savedAt: time.Now()})
	return len(revs) + 1, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
