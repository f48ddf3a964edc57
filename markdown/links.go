package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

// BrokenLink is a reference style link or image whose label has no
// definition in the document.
type BrokenLink struct {
	Label string // raw label, as written
	Span  string // reconstructed source, e.g. "[Foo][wp:en]"
	Image bool
}

// LinkResolver turns a broken link into a destination and title. It never
// fails; the literal label is the last resort.
type LinkResolver interface {
	Resolve(link BrokenLink) (dest, title string)
}

// LinkedFile is a document local resource with its published URL.
type LinkedFile struct {
	Name string
	URL  string
}

// Resolver is the LinkResolver used for posts.
type Resolver struct {
	Files []LinkedFile
	Lang  string
}

var externalLinkRe = regexp.MustCompile(`(?s)^\[(.*)\]\[(\w+)(:(\w+))?([,\s]+(.*))?\]$`)

func (r *Resolver) Resolve(link BrokenLink) (string, string) {
	label := strings.Trim(link.Label, "`")
	for _, f := range r.Files {
		if f.Name == label {
			return f.URL, ""
		}
	}
	if link.Image {
		// An image label is an image destination, see ParseImageDest.
		return link.Label, ""
	}
	if dest, title, ok := externalLink(link.Span, r.Lang); ok {
		return dest, title
	}
	if fa, ok := ParseFaRef(label); ok {
		return fa.URL(), ""
	}
	return link.Label, ""
}

func externalLink(span, lang string) (string, string, bool) {
	m := externalLinkRe.FindStringSubmatch(span)
	if m == nil {
		return "", "", false
	}
	text, kind, attr, extra := collapseSpace(m[1]), m[2], m[4], m[6]
	switch kind {
	case "personname", "wp":
		wiki := lang
		if attr != "" {
			wiki = attr
		}
		if extra != "" {
			text = fmt.Sprintf("%s (%s)", text, extra)
		}
		page := strings.ReplaceAll(strings.ReplaceAll(text, " ", "_"), "\u00ad", "")
		return fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", wiki, page),
			localize(lang, msgWikipedia, text), true
	case "sw":
		return "https://seriewikin.serieframjandet.se/index.php/" + strings.ReplaceAll(text, " ", "_"),
			localize(lang, msgSeriewiki, text), true
	case "cargo":
		return "https://lib.rs/crates/" + text, "", true
	case "foldoc":
		return "https://foldoc.org/" + text, localize(lang, msgFoldoc, text), true
	case "rfc":
		return fmt.Sprintf("http://www.faqs.org/rfcs/rfc%s.html", attr), localize(lang, msgRFC, attr), true
	}
	return "", "", false
}

var spaceRunRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRunRe.ReplaceAllString(s, " ")
}
