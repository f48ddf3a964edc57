package markdown

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/eringen/pubmark/imgcli"
)

// ImageSource looks up images on the image server.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) (*imgcli.ImageInfo, error)
	MakePublic(ctx context.Context, ref string) (*imgcli.ImageInfo, error)
}

// AssetStore stores binary assets belonging to a post and returns the URL
// they are served from.
type AssetStore interface {
	StoreAsset(ctx context.Context, year int, name, mime string, data []byte) (string, error)
}

// Env holds the collaborators and settings shared by the renders of one
// batch run. It is read only during rendering.
type Env struct {
	Images ImageSource
	Assets AssetStore
	Client *http.Client // for oembed and thumbnails
	Logger *slog.Logger
	Teaser TeaserLimits
	Video  VideoEndpoints

	// PublishImages makes non public images public instead of warning.
	PublishImages bool
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Env) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

// PageRef identifies a post. Meta pages have year 0.
type PageRef struct {
	Year int
	Slug string
	Lang string
}

// URL is the path of the page on the site.
func (p PageRef) URL() string {
	if p.Year == 0 {
		return fmt.Sprintf("/%s.%s", p.Slug, p.Lang)
	}
	return fmt.Sprintf("/%d/%s.%s", p.Year, p.Slug, p.Lang)
}

// Document is a markdown file split into metadata and body.
type Document struct {
	Page  PageRef
	Meta  Meta
	Body  string       // markdown after the metadata block
	Files []LinkedFile // published res: files
}

// Output is the compiled form of a document.
type Output struct {
	Title       string
	Body        string
	Teaser      string
	Description string
	FrontImage  string // empty when the post has no figure
	UsesMap     bool
}

// DraftMarker is appended to the titles of unpublished posts.
const DraftMarker = " \U0001F58B"

// mapSignature is present in the body iff a leaflet map is embedded.
const mapSignature = "function initmap()"

var frontImageRe = regexp.MustCompile(`<figure[^>]*><(?:a href|img[^>]src)=['"]([^'"]+)['"]`)

// Compile renders a document into its title, body, teaser, description
// and front image.
func Compile(ctx context.Context, env *Env, doc Document) (*Output, error) {
	resolver := &Resolver{Files: doc.Files, Lang: doc.Page.Lang}
	title, body, description, err := renderDocument(ctx, env, doc.Page, resolver, doc.Body)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Title:       title,
		Body:        body,
		Teaser:      body,
		Description: description,
		UsesMap:     strings.Contains(body, mapSignature),
	}
	if !doc.Meta.IsMeta {
		if cut, ok := FindTeaserCut(doc.Body, env.Teaser); ok {
			teaserMD := adjustTeaser(doc, doc.Body[:cut])
			_, teaser, teaserDescription, err := renderDocument(ctx, env, doc.Page, resolver, teaserMD)
			if err != nil {
				return nil, fmt.Errorf("teaser: %w", err)
			}
			out.Teaser = teaser
			out.Description = teaserDescription
		}
	}
	out.FrontImage = findFrontImage(out.Teaser, out.Body)
	if doc.Meta.IsDraft() {
		out.Title += DraftMarker
	}
	return out, nil
}

func findFrontImage(htmls ...string) string {
	for _, h := range htmls {
		if m := frontImageRe.FindStringSubmatch(h); m != nil {
			return m[1]
		}
	}
	return ""
}

// renderDocument parses md, which must start with a level one heading, and
// renders the heading and the rest separately.
func renderDocument(ctx context.Context, env *Env, page PageRef, resolver LinkResolver, md string) (title, body, description string, err error) {
	events, err := Parse(md, resolver)
	if err != nil {
		return "", "", "", err
	}
	if len(events) == 0 {
		return "", "", "", authoringf("title", "document is empty")
	}
	if start, ok := events[0].(Start); !ok || start.Tag.Kind != TagHeading || start.Tag.Level != 1 {
		return "", "", "", authoringf("title", "expected h1, got %s", describe(events[0]))
	}
	end := 1
	for end < len(events) && !isEnd(events[end], TagHeading) {
		end++
	}
	if end == len(events) {
		return "", "", "", authoringf("title", "no end of h1")
	}
	if title, err = RenderHTML(ctx, env, page, events[1:end]); err != nil {
		return "", "", "", err
	}
	rest := events[end+1:]
	if body, err = RenderHTML(ctx, env, page, rest); err != nil {
		return "", "", "", err
	}
	if description, err = Summarize(rest); err != nil {
		return "", "", "", err
	}
	return title, body, description, nil
}

func describe(ev Event) string {
	switch ev := ev.(type) {
	case Start:
		return "start of " + ev.Tag.Kind.String()
	case End:
		return "end of " + ev.Tag.Kind.String()
	default:
		return fmt.Sprintf("%T", ev)
	}
}
