package pagestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS revisions (
	page TEXT NOT NULL,
	rev INTEGER NOT NULL,
	body BLOB,
	deleted INTEGER NOT NULL DEFAULT 0,
	comment TEXT NOT NULL DEFAULT '',
	saved_at INTEGER NOT NULL,
	PRIMARY KEY (page, rev)
);
`

// DefaultCacheSize is the number of revision bodies kept in memory.
const DefaultCacheSize = 256

type bodyKey struct {
	page string
	rev  int
}

// SQLite is a Store backed by a SQLite database. Revision bodies are
// immutable, so reads of explicit revisions are served from an LRU cache.
type SQLite struct {
	db    *sql.DB
	cache *lru.Cache[bodyKey, []byte]
}

// OpenSQLite opens (and creates if needed) the database at path.
// cacheSize <= 0 selects DefaultCacheSize.
func OpenSQLite(ctx context.Context, path string, cacheSize int) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers, which keeps Save's read-check-insert
	// atomic without relying on busy retries.
	db.SetMaxOpenConns(1)

	cache, err := lru.New[bodyKey, []byte](cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create body cache: %w", err)
	}
	s := &SQLite{db: db, cache: cache}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentRevision(ctx context.Context, q querier, name string) (int, error) {
	var rev sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(rev) FROM revisions WHERE page = ?`, name).Scan(&rev); err != nil {
		return 0, fmt.Errorf("query current revision of %q: %w", name, err)
	}
	if !rev.Valid {
		return 0, ErrNotFound
	}
	return int(rev.Int64), nil
}

func loadRevision(ctx context.Context, q querier, name string, rev int) (body []byte, deleted bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT body, deleted FROM revisions WHERE page = ? AND rev = ?`, name, rev).
		Scan(&body, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrRevisionNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %q revision %d: %w", name, rev, err)
	}
	return body, deleted, nil
}

// RawBody implements Store.
func (s *SQLite) RawBody(ctx context.Context, name string, rev int) ([]byte, error) {
	if rev < 0 {
		return nil, ErrRevisionNotFound
	}
	if rev == 0 {
		current, err := currentRevision(ctx, s.db, name)
		if err != nil {
			return nil, err
		}
		rev = current
	}
	key := bodyKey{page: name, rev: rev}
	if body, ok := s.cache.Get(key); ok {
		return bytes.Clone(body), nil
	}
	body, _, err := loadRevision(ctx, s.db, name, rev)
	if errors.Is(err, ErrRevisionNotFound) {
		if _, curErr := currentRevision(ctx, s.db, name); errors.Is(curErr, ErrNotFound) {
			return nil, ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, body)
	return bytes.Clone(body), nil
}

// Lines implements Store.
func (s *SQLite) Lines(ctx context.Context, name string, rev int) ([]string, error) {
	body, err := s.RawBody(ctx, name, rev)
	if err != nil {
		return nil, err
	}
	return SplitLines(body), nil
}

// RealRevision implements Store.
func (s *SQLite) RealRevision(ctx context.Context, name string) (int, error) {
	return currentRevision(ctx, s.db, name)
}

// Exists implements Store.
func (s *SQLite) Exists(ctx context.Context, name string) (bool, error) {
	var deleted bool
	err := s.db.QueryRowContext(ctx, `
		SELECT deleted FROM revisions
		WHERE page = ? ORDER BY rev DESC LIMIT 1
	`, name).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query page %q: %w", name, err)
	}
	return !deleted, nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, filter ListFilter) ([]PageInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.page, r.rev, r.deleted
		FROM revisions r
		JOIN (SELECT page, MAX(rev) AS rev FROM revisions GROUP BY page) cur
		  ON cur.page = r.page AND cur.rev = r.rev
		ORDER BY r.page ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var infos []PageInfo
	for rows.Next() {
		var info PageInfo
		if err := rows.Scan(&info.Name, &info.Revision, &info.Deleted); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if filter.keep(info) {
			infos = append(infos, info)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return infos, nil
}

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, name string, body []byte, expectedRev int, comment string) (int, error) {
	return s.append(ctx, name, body, false, expectedRev, comment)
}

// Delete implements Store. An expectedRev of 0 skips the conflict check.
func (s *SQLite) Delete(ctx context.Context, name string, expectedRev int, comment string) (int, error) {
	return s.append(ctx, name, nil, true, expectedRev, comment)
}

func (s *SQLite) append(ctx context.Context, name string, body []byte, deletion bool, expectedRev int, comment string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := currentRevision(ctx, tx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	if current > 0 {
		curBody, curDeleted, err := loadRevision(ctx, tx, name, current)
		if err != nil {
			return 0, err
		}
		switch {
		case deletion && curDeleted:
			return current, ErrNotFound
		case deletion && expectedRev != 0 && expectedRev != current:
			return current, ErrEditConflict
		case !deletion && expectedRev != current:
			return current, ErrEditConflict
		case !deletion && !curDeleted && bytes.Equal(curBody, body):
			return current, ErrUnchanged
		}
	} else {
		if deletion {
			return 0, ErrNotFound
		}
		if expectedRev != 0 {
			return 0, ErrEditConflict
		}
	}

	if body == nil {
		body = []byte{}
	}
	next := current + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (page, rev, body, deleted, comment, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, name, next, body, deletion, comment, time.Now().Unix()); err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit revision: %w", err)
	}
	return next, nil
}
