package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// commentHeadingLevel is the level the shallowest heading of a comment
// is moved to, below the headings of the page it is shown on.
const commentHeadingLevel = 3

var commentMarkdown = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(commentTransformer{}, 100)),
	),
	goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(escapedHTMLRenderer{}, 100)),
	),
)

// Comment returns a templ.Component that renders an untrusted comment.
func Comment(raw string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := RenderComment(&buf, raw); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderComment writes the HTML for an untrusted comment to buf. Raw
// HTML is shown as text and headings are moved down the outline.
func RenderComment(buf *bytes.Buffer, raw string) error {
	return commentMarkdown.Convert([]byte(raw), buf)
}

type commentTransformer struct{}

func (commentTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	var headings []*ast.Heading
	var unsafe []ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			headings = append(headings, n)
		case *ast.Link:
			if SafeURL(string(n.Destination)) == "" {
				unsafe = append(unsafe, n)
			}
		case *ast.Image:
			if SafeURL(string(n.Destination)) == "" {
				unsafe = append(unsafe, n)
			}
		case *ast.AutoLink:
			if SafeURL(string(n.URL(source))) == "" {
				unsafe = append(unsafe, n)
			}
		}
		return ast.WalkContinue, nil
	})
	liftHeadings(headings)
	for _, n := range unsafe {
		unwrap(n, source)
	}
}

func liftHeadings(headings []*ast.Heading) {
	if len(headings) == 0 {
		return
	}
	shallowest := headings[0].Level
	for _, h := range headings {
		shallowest = min(shallowest, h.Level)
	}
	shift := commentHeadingLevel - shallowest
	for _, h := range headings {
		h.Level = min(max(h.Level+shift, 1), 6)
	}
}

// unwrap replaces a link or image by its text.
func unwrap(n ast.Node, source []byte) {
	parent := n.Parent()
	if parent == nil {
		return
	}
	if a, ok := n.(*ast.AutoLink); ok {
		parent.ReplaceChild(parent, n, ast.NewString(a.Label(source)))
		return
	}
	for c := n.FirstChild(); c != nil; {
		next := c.NextSibling()
		parent.InsertBefore(parent, n, c)
		c = next
	}
	parent.RemoveChild(parent, n)
}

// escapedHTMLRenderer renders raw HTML as the text it was written as.
type escapedHTMLRenderer struct{}

func (r escapedHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
}

func (escapedHTMLRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}

func (escapedHTMLRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.HTMLBlock)
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	if n.HasClosure() {
		_, _ = w.Write(util.EscapeHTML(n.ClosureLine.Value(source)))
	}
	return ast.WalkContinue, nil
}

// SafeURL validates a URL for use in an attribute of untrusted content.
// It returns the escaped URL, or "" if the URL is not allowed.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
