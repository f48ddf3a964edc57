package pubmark

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pubmark/markdown"
)

// ErrNotFound is returned when a requested post, page or asset does not exist.
var ErrNotFound = sql.ErrNoRows

// Store wraps a SQLite database holding compiled posts, tags, meta pages
// and assets.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// Import workers write concurrently: every pooled connection needs the
	// busy timeout, and transactions take the write lock up front.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    year INTEGER NOT NULL,
    slug TEXT NOT NULL,
    lang TEXT NOT NULL,
    title TEXT NOT NULL,
    teaser TEXT NOT NULL,
    content TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    front_image TEXT NOT NULL DEFAULT '',
    uses_map INTEGER NOT NULL DEFAULT 0,
    orig_md TEXT NOT NULL,
    posted_at TEXT,
    updated_at TEXT,
    UNIQUE (year, slug, lang)
);
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    slug TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS post_tags (
    post_id INTEGER NOT NULL REFERENCES posts(id),
    tag_id INTEGER NOT NULL REFERENCES tags(id),
    PRIMARY KEY (post_id, tag_id)
);
CREATE TABLE IF NOT EXISTS metapages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL,
    lang TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    orig_md TEXT NOT NULL,
    UNIQUE (slug, lang)
);
CREATE TABLE IF NOT EXISTS assets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    year INTEGER NOT NULL,
    name TEXT NOT NULL,
    mime TEXT NOT NULL,
    content BLOB NOT NULL,
    UNIQUE (year, name)
);
`)
	return err
}

const postColumns = `id, year, slug, lang, title, teaser, content, description, front_image, uses_map, orig_md, posted_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (PostRecord, error) {
	var p PostRecord
	var usesMap int
	var posted, updated sql.NullString
	err := row.Scan(&p.ID, &p.Year, &p.Slug, &p.Lang, &p.Title, &p.Teaser, &p.Content,
		&p.Description, &p.FrontImage, &usesMap, &p.OrigMD, &posted, &updated)
	if err != nil {
		return PostRecord{}, err
	}
	p.UsesMap = usesMap == 1
	if p.PostedAt, err = parseTime(posted); err != nil {
		return PostRecord{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return PostRecord{}, err
	}
	return p, nil
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, fmt.Errorf("stored time %q: %w", v.String, err)
	}
	return &t, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// LookupPost returns the stored post for year, slug and lang.
func (s *Store) LookupPost(ctx context.Context, year int, slug, lang string) (PostRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE year = ? AND slug = ? AND lang = ?`, year, slug, lang)
	return scanPost(row)
}

// SavePost inserts or updates a post and, if tags is non-nil, replaces its
// tags, in one transaction. A new post gets its ID set.
func (s *Store) SavePost(ctx context.Context, p *PostRecord, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := savePost(ctx, tx, p, tags); err != nil {
		return err
	}
	return tx.Commit()
}

// Publication is what one compiled post stores: the post itself, its
// tags and the assets the compile produced.
type Publication struct {
	Post   *PostRecord
	Tags   []string // nil keeps the stored tags
	Assets []Asset
	// ReplaceDrafts removes drafts of the same slug and language whose
	// source differs from the post's.
	ReplaceDrafts bool
}

// PublishResult reports what Publish changed besides the post.
type PublishResult struct {
	RemovedDrafts int64
	StoredAssets  []string // names of new or changed assets
}

// Publish stores a compiled post in one transaction: stale drafts are
// removed, the assets written and the post saved, or nothing is.
func (s *Store) Publish(ctx context.Context, pub Publication) (PublishResult, error) {
	var res PublishResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	p := pub.Post
	if pub.ReplaceDrafts {
		if res.RemovedDrafts, err = deleteStaleDrafts(ctx, tx, p.Slug, p.Lang, p.OrigMD); err != nil {
			return res, fmt.Errorf("delete stale drafts: %w", err)
		}
	}
	for _, a := range pub.Assets {
		changed, err := putAsset(ctx, tx, a)
		if err != nil {
			return res, err
		}
		if changed {
			res.StoredAssets = append(res.StoredAssets, a.Name)
		}
	}
	if err := savePost(ctx, tx, p, pub.Tags); err != nil {
		return res, err
	}
	return res, tx.Commit()
}

func savePost(ctx context.Context, tx *sql.Tx, p *PostRecord, tags []string) error {
	usesMap := 0
	if p.UsesMap {
		usesMap = 1
	}
	if p.ID == 0 {
		res, err := tx.ExecContext(ctx, `INSERT INTO posts
(year, slug, lang, title, teaser, content, description, front_image, uses_map, orig_md, posted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Year, p.Slug, p.Lang, p.Title, p.Teaser, p.Content, p.Description, p.FrontImage,
			usesMap, p.OrigMD, formatTime(p.PostedAt), formatTime(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert post %s: %w", p.URL(), err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else {
		_, err := tx.ExecContext(ctx, `UPDATE posts SET
title = ?, teaser = ?, content = ?, description = ?, front_image = ?, uses_map = ?, orig_md = ?,
posted_at = COALESCE(?, posted_at), updated_at = COALESCE(?, updated_at)
WHERE id = ?`,
			p.Title, p.Teaser, p.Content, p.Description, p.FrontImage, usesMap, p.OrigMD,
			formatTime(p.PostedAt), formatTime(p.UpdatedAt), p.ID)
		if err != nil {
			return fmt.Errorf("update post #%d: %w", p.ID, err)
		}
	}
	if tags != nil {
		if err := tagPost(ctx, tx, p.ID, tags); err != nil {
			return err
		}
	}
	return nil
}

// tagPost replaces the tags of a post, creating tags that do not exist.
// Tag names match case insensitively.
func tagPost(ctx context.Context, tx *sql.Tx, postID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("delete old tags: %w", err)
	}
	for _, name := range FilterEmpty(tags) {
		var tagID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
		if err == sql.ErrNoRows {
			var res sql.Result
			res, err = tx.ExecContext(ctx, `INSERT INTO tags (name, slug) VALUES (?, ?)`, name, Slugify(name))
			if err == nil {
				tagID, err = res.LastInsertId()
			}
		}
		if err != nil {
			return fmt.Errorf("find or create tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, tagID); err != nil {
			return fmt.Errorf("tag post: %w", err)
		}
	}
	return nil
}

// DeleteStaleDrafts removes draft versions of slug.lang whose source
// differs from origMD, so a draft that gets a publication date does not
// linger under another year.
func (s *Store) DeleteStaleDrafts(ctx context.Context, slug, lang, origMD string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	n, err := deleteStaleDrafts(ctx, tx, slug, lang, origMD)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func deleteStaleDrafts(ctx context.Context, tx *sql.Tx, slug, lang, origMD string) (int64, error) {
	const stale = `slug = ? AND lang = ? AND title LIKE ? AND orig_md != ?`
	args := []any{slug, lang, "%" + markdown.DraftMarker, origMD}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM post_tags WHERE post_id IN (SELECT id FROM posts WHERE `+stale+`)`, args...); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE `+stale, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListPosts returns all posts with their tags, drafts first and then by
// publication date descending.
func (s *Store) ListPosts(ctx context.Context) ([]PostLink, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.year, p.slug, p.lang, p.title, p.posted_at, COALESCE(GROUP_CONCAT(t.name, ','), '')
FROM posts p
LEFT JOIN post_tags pt ON pt.post_id = p.id
LEFT JOIN tags t ON t.id = pt.tag_id
GROUP BY p.id
ORDER BY p.posted_at IS NULL DESC, p.posted_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []PostLink
	for rows.Next() {
		var p PostLink
		var posted sql.NullString
		var tags string
		if err := rows.Scan(&p.ID, &p.Year, &p.Slug, &p.Lang, &p.Title, &posted, &tags); err != nil {
			return nil, err
		}
		if p.PostedAt, err = parseTime(posted); err != nil {
			return nil, err
		}
		p.Tags = FilterEmpty(strings.Split(tags, ","))
		slices.Sort(p.Tags)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListTags returns all tags ordered by slug.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM tags ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// LookupMetaPage returns the meta page for slug and lang.
func (s *Store) LookupMetaPage(ctx context.Context, slug, lang string) (MetaPage, error) {
	m := MetaPage{Slug: slug, Lang: lang}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, orig_md FROM metapages WHERE slug = ? AND lang = ?`, slug, lang).
		Scan(&m.ID, &m.Title, &m.Content, &m.OrigMD)
	if err != nil {
		return MetaPage{}, err
	}
	return m, nil
}

// SaveMetaPage inserts or replaces a meta page.
func (s *Store) SaveMetaPage(ctx context.Context, m *MetaPage) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO metapages (slug, lang, title, content, orig_md) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (slug, lang) DO UPDATE SET title = excluded.title, content = excluded.content, orig_md = excluded.orig_md`,
		m.Slug, m.Lang, m.Title, m.Content, m.OrigMD)
	if err != nil {
		return fmt.Errorf("save meta page /%s.%s: %w", m.Slug, m.Lang, err)
	}
	return s.db.QueryRowContext(ctx,
		`SELECT id FROM metapages WHERE slug = ? AND lang = ?`, m.Slug, m.Lang).Scan(&m.ID)
}

// PutAsset stores an asset unless an identical one is already stored.
// It reports whether anything was written.
func (s *Store) PutAsset(ctx context.Context, a Asset) (bool, error) {
	return putAsset(ctx, s.db, a)
}

// execer is a *sql.DB or a *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func putAsset(ctx context.Context, db execer, a Asset) (bool, error) {
	var mime string
	var content []byte
	err := db.QueryRowContext(ctx,
		`SELECT mime, content FROM assets WHERE year = ? AND name = ?`, a.Year, a.Name).Scan(&mime, &content)
	switch {
	case err == nil && mime == a.Mime && string(content) == string(a.Content):
		return false, nil
	case err != nil && err != sql.ErrNoRows:
		return false, err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO assets (year, name, mime, content) VALUES (?, ?, ?, ?)
ON CONFLICT (year, name) DO UPDATE SET mime = excluded.mime, content = excluded.content`,
		a.Year, a.Name, a.Mime, a.Content)
	if err != nil {
		return false, fmt.Errorf("store asset %d/%s: %w", a.Year, a.Name, err)
	}
	return true, nil
}

// GetAsset returns a stored asset.
func (s *Store) GetAsset(ctx context.Context, year int, name string) (Asset, error) {
	a := Asset{Year: year, Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT mime, content FROM assets WHERE year = ? AND name = ?`, year, name).Scan(&a.Mime, &a.Content)
	if err != nil {
		return Asset{}, err
	}
	return a, nil
}

// RecentPosts returns up to limit published posts, newest first.
func (s *Store) RecentPosts(ctx context.Context, limit int) ([]PostRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE posted_at IS NOT NULL ORDER BY posted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []PostRecord
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListMetaPages returns all meta pages without their content.
func (s *Store) ListMetaPages(ctx context.Context) ([]MetaPage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, lang, title FROM metapages ORDER BY slug, lang`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []MetaPage
	for rows.Next() {
		var m MetaPage
		if err := rows.Scan(&m.ID, &m.Slug, &m.Lang, &m.Title); err != nil {
			return nil, err
		}
		pages = append(pages, m)
	}
	return pages, rows.Err()
}
