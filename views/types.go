package views

// Site holds site-wide settings. Every page gets it so nothing is
// hardcoded.
type Site struct {
	Name        string
	URL         string
	Description string
	StyleSheet  string // path of the highlighting stylesheet
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	UsesMap     bool
}

// ListItem is a post as shown in listings.
type ListItem struct {
	Title string
	URL   string
	Date  string // empty for drafts
	Tags  []string
}

// TagLink is a tag filter in the index.
type TagLink struct {
	Name   string
	Slug   string
	Active bool
}

// Post is a compiled post ready to be shown. Content is trusted HTML.
type Post struct {
	Title       string
	URL         string
	Lang        string
	Date        string
	Updated     string
	Description string
	FrontImage  string
	Content     string
	UsesMap     bool
	Tags        []string
}

// Page is a compiled meta page.
type Page struct {
	Title   string
	URL     string
	Lang    string
	Content string
}
