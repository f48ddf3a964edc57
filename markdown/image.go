package markdown

import (
	"fmt"
	"html"
	"regexp"
	"slices"
	"strings"
)

// DirectiveKind is how an image is presented.
type DirectiveKind int

const (
	ImageNormal DirectiveKind = iota
	ImageGallery
	ImageScaled
	ImageCover
)

// Attr is one key="value" pair of an image directive.
type Attr struct {
	Key   string
	Value string
}

// Directive is a parsed image destination:
//
//	path [{class class key="value"}] caption
type Directive struct {
	Path    string
	Classes []string
	Attrs   []Attr
	Caption string
	Kind    DirectiveKind
}

// HasClass reports whether the directive lists class.
func (d *Directive) HasClass(class string) bool {
	return slices.Contains(d.Classes, class)
}

var (
	imageDestRe = regexp.MustCompile(`^([A-Za-z0-9/._-]*)\s*(\{([\s\w]*)((?:\s[\w-]*="[^"]+")*)\})?\s*([^{]*)$`)
	imageAttrRe = regexp.MustCompile(`([\w-]*)="([^"]+)"`)
)

// ParseImageDest parses the destination of an image.
func ParseImageDest(dest string) (*Directive, error) {
	m := imageDestRe.FindStringSubmatch(dest)
	if m == nil {
		return nil, authoringf(dest, "bad image ref")
	}
	d := &Directive{
		Path:    m[1],
		Classes: strings.Fields(m[3]),
		Caption: strings.TrimSpace(m[5]),
	}
	for _, a := range imageAttrRe.FindAllStringSubmatch(m[4], -1) {
		d.Attrs = append(d.Attrs, Attr{Key: a[1], Value: a[2]})
	}
	switch {
	case d.Path == "cover":
		d.Kind = ImageCover
	case d.HasClass("gallery"):
		d.Kind = ImageGallery
	case d.HasClass("scaled"):
		d.Kind = ImageScaled
	}
	return d, nil
}

func (d *Directive) attrString() string {
	var b strings.Builder
	for _, a := range d.Attrs {
		fmt.Fprintf(&b, ` %s="%s"`, a.Key, html.EscapeString(a.Value))
	}
	return b.String()
}

// image renders a figure for an image and its inner (alt) text.
func (r *htmlRenderer) image(tag Tag) error {
	inner := r.collectInline(TagImage)
	d, err := ParseImageDest(tag.Dest)
	if err != nil {
		return err
	}
	var figure string
	if d.Kind == ImageCover {
		figure, err = coverFigure(d, inner, tag.Title)
	} else {
		figure, err = r.imageFigure(d, inner, tag.Title)
	}
	if err != nil {
		return err
	}

	wasInParagraph := r.leaveParagraph()
	if d.Kind == ImageGallery {
		r.openGallery()
	} else {
		r.closeGallery()
	}
	r.buf.WriteString(figure)
	r.buf.WriteByte('\n')
	if wasInParagraph {
		r.resumeParagraph()
	}
	return nil
}

func coverFigure(d *Directive, inner, title string) (string, error) {
	fa, ok := ParseFaRef(inner)
	if !ok {
		return "", authoringf(inner, "cover image without magazine issue reference")
	}
	url := fa.CoverURL()
	text := html.EscapeString(strings.TrimSpace(inner))
	return fmt.Sprintf(
		"<figure class='%s'><a href='%s'><img alt='Omslagsbild %s' src='%s' width='150'/></a><figcaption>%s</figcaption></figure>",
		strings.Join(append([]string{"fa-cover"}, d.Classes...), " "),
		url, text, url, joinNonEmpty(text, d.Caption, title),
	), nil
}

func (r *htmlRenderer) imageFigure(d *Directive, inner, title string) (string, error) {
	if r.env.Images == nil {
		return "", authoringf(d.Path, "no image server configured")
	}
	info, err := r.env.Images.Fetch(r.ctx, d.Path)
	if err != nil {
		return "", networkErr("image "+d.Path, err)
	}
	if !info.IsPublic() {
		if r.env.PublishImages {
			r.env.logger().Info("Making image public", "image", d.Path)
			if info, err = r.env.Images.MakePublic(r.ctx, d.Path); err != nil {
				return "", networkErr("make public "+d.Path, err)
			}
		} else {
			r.env.logger().Warn("Image is not public", "image", d.Path, "page", r.page.URL())
		}
	}
	alt := strings.TrimSpace(inner)
	markup := info.Markup(alt)
	// A scaled gallery image is still scaled.
	if d.HasClass("scaled") {
		markup = info.MarkupLarge(alt)
	}
	classes := slices.Clone(d.Classes)
	if info.IsPortrait() {
		classes = append(classes, "portrait")
	}
	var class string
	if len(classes) > 0 {
		class = fmt.Sprintf(" class='%s'", strings.Join(classes, " "))
	}
	return fmt.Sprintf("<figure%s%s>%s<figcaption>%s</figcaption></figure>",
		class, d.attrString(), markup, joinNonEmpty(d.Caption, title)), nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
