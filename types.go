package pubmark

import "time"

// PostRecord is a compiled post as stored in SQLite.
type PostRecord struct {
	ID          int64
	Year        int
	Slug        string
	Lang        string
	Title       string
	Teaser      string
	Content     string
	Description string
	FrontImage  string
	UsesMap     bool
	OrigMD      string     // the whole source file, metadata included
	PostedAt    *time.Time // nil for drafts
	UpdatedAt   *time.Time
}

// URL is the path of the post on the site.
func (p PostRecord) URL() string {
	return postURL(p.Year, p.Slug, p.Lang)
}

// PostLink is the short form of a post used in listings.
type PostLink struct {
	ID       int64
	Year     int
	Slug     string
	Lang     string
	Title    string
	PostedAt *time.Time
	Tags     []string
}

// URL is the path of the post on the site.
func (p PostLink) URL() string {
	return postURL(p.Year, p.Slug, p.Lang)
}

// MetaPage is a page outside the dated post hierarchy, e.g. "about".
type MetaPage struct {
	ID      int64
	Slug    string
	Lang    string
	Title   string
	Content string
	OrigMD  string
}

// Tag is a post tag. Slug is derived from the name when first created.
type Tag struct {
	ID   int64
	Name string
	Slug string
}

// Asset is a binary file belonging to the posts of a year.
type Asset struct {
	Year    int
	Name    string
	Mime    string
	Content []byte
}

// URL is the path of the page on the site.
func (m MetaPage) URL() string {
	return postURL(0, m.Slug, m.Lang)
}
