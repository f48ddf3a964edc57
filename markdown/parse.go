package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var contentMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote),
	goldmark.WithParserOptions(parser.WithAttribute()),
)

// brokenDest marks the destination of a reference whose label had no
// definition. It can not occur in a parsed destination.
const brokenDest = "\x00broken:"

// Parse parses a document body into an event stream. Reference links
// and images without a definition are handed to resolver.
func Parse(body string, resolver LinkResolver) ([]Event, error) {
	source := []byte(body)
	pc := &resolvingContext{Context: parser.NewContext()}
	root := contentMarkdown.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	c := &converter{
		source:   source,
		resolver: resolver,
		labels:   rawLabels(body),
	}
	if err := ast.Walk(root, c.visit); err != nil {
		return nil, err
	}
	return c.events, nil
}

// resolvingContext answers every reference lookup. Labels without a
// definition get a placeholder that the converter resolves once the link
// text is known.
type resolvingContext struct {
	parser.Context
}

func (c *resolvingContext) Reference(label string) (parser.Reference, bool) {
	if ref, ok := c.Context.Reference(label); ok {
		return ref, true
	}
	return parser.NewReference([]byte(label), []byte(brokenDest+label), nil), true
}

var bracketRe = regexp.MustCompile(`\[([^\[\]]+)\]`)

// rawLabels maps normalized reference labels back to how they were
// written, since normalization folds case.
func rawLabels(src string) map[string]string {
	labels := make(map[string]string)
	for _, m := range bracketRe.FindAllStringSubmatch(src, -1) {
		key := util.ToLinkReference([]byte(m[1]))
		if _, seen := labels[key]; !seen {
			labels[key] = collapseSpace(strings.TrimSpace(m[1]))
		}
	}
	return labels
}

type converter struct {
	source   []byte
	resolver LinkResolver
	labels   map[string]string
	events   []Event
}

func (c *converter) emit(ev ...Event) {
	c.events = append(c.events, ev...)
}

// container emits Start on entering and End on leaving.
func (c *converter) container(tag Tag, entering bool) {
	if entering {
		c.emit(Start{Tag: tag})
	} else {
		c.emit(End{Tag: tag})
	}
}

func (c *converter) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.Document, *ast.TextBlock, *extast.FootnoteList:
	case *ast.Paragraph:
		c.container(Tag{Kind: TagParagraph}, entering)
	case *ast.Heading:
		c.container(headingTag(n), entering)
	case *ast.Blockquote:
		c.container(Tag{Kind: TagBlockQuote}, entering)
	case *ast.List:
		tag := Tag{Kind: TagList, Ordered: n.IsOrdered()}
		if tag.Ordered {
			tag.Start = n.Start
		}
		c.container(tag, entering)
	case *ast.ListItem:
		c.container(Tag{Kind: TagItem}, entering)
	case *ast.FencedCodeBlock:
		var info string
		if n.Info != nil {
			info = strings.TrimSpace(string(n.Info.Segment.Value(c.source)))
		}
		c.codeBlock(info, n.Lines())
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		c.codeBlock("", n.Lines())
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock:
		var buf bytes.Buffer
		c.writeLines(&buf, n.Lines())
		if n.HasClosure() {
			buf.Write(n.ClosureLine.Value(c.source))
		}
		c.emit(HTML{Raw: buf.String()})
		return ast.WalkSkipChildren, nil
	case *ast.ThematicBreak:
		if entering {
			c.emit(Rule{})
		}
	case *ast.Text:
		if entering {
			c.text(n)
		}
	case *ast.String:
		if entering && len(n.Value) > 0 {
			c.emit(Text{Text: string(n.Value)})
		}
	case *ast.CodeSpan:
		c.emit(Code{Text: c.codeSpan(n)})
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		kind := TagEmphasis
		if n.Level >= 2 {
			kind = TagStrong
		}
		c.container(Tag{Kind: kind}, entering)
	case *ast.Link:
		c.container(c.linkTag(TagLink, n, n.Destination, n.Title), entering)
	case *ast.Image:
		c.container(c.linkTag(TagImage, n, n.Destination, n.Title), entering)
	case *ast.AutoLink:
		dest := string(n.URL(c.source))
		if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(dest), "mailto:") {
			dest = "mailto:" + dest
		}
		tag := Tag{Kind: TagLink, Dest: dest}
		c.emit(Start{Tag: tag}, Text{Text: string(n.Label(c.source))}, End{Tag: tag})
		return ast.WalkSkipChildren, nil
	case *ast.RawHTML:
		var buf bytes.Buffer
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(c.source))
		}
		c.emit(InlineHTML{Raw: buf.String()})
		return ast.WalkSkipChildren, nil
	case *extast.Table:
		c.container(Tag{Kind: TagTable}, entering)
	case *extast.TableHeader:
		c.container(Tag{Kind: TagTableHead}, entering)
	case *extast.TableRow:
		c.container(Tag{Kind: TagTableRow}, entering)
	case *extast.TableCell:
		c.container(Tag{Kind: TagTableCell}, entering)
	case *extast.Strikethrough:
		c.container(Tag{Kind: TagStrikethrough}, entering)
	case *extast.TaskCheckBox:
		if entering {
			c.emit(TaskListMarker{Checked: n.IsChecked})
		}
	case *extast.FootnoteLink:
		if entering {
			c.emit(FootnoteReference{Label: fmt.Sprint(n.Index)})
		}
		return ast.WalkSkipChildren, nil
	case *extast.Footnote:
		c.container(Tag{Kind: TagFootnoteDefinition, Label: string(n.Ref)}, entering)
	case *extast.FootnoteBacklink:
		return ast.WalkSkipChildren, nil
	default:
		return ast.WalkStop, authoringf(n.Kind().String(), "unsupported markdown construct")
	}
	return ast.WalkContinue, nil
}

func headingTag(n *ast.Heading) Tag {
	tag := Tag{Kind: TagHeading, Level: n.Level}
	if v, ok := n.AttributeString("id"); ok {
		if id, ok := v.([]byte); ok {
			tag.ID = string(id)
		}
	}
	if v, ok := n.AttributeString("class"); ok {
		if class, ok := v.([]byte); ok {
			tag.Classes = strings.Fields(string(class))
		}
	}
	return tag
}

func (c *converter) text(n *ast.Text) {
	value := n.Segment.Value(c.source)
	if !n.IsRaw() {
		value = util.ResolveNumericReferences(util.ResolveEntityNames(util.UnescapePunctuations(value)))
	}
	if len(value) > 0 {
		c.emit(Text{Text: string(value)})
	}
	switch {
	case n.HardLineBreak():
		c.emit(HardBreak{})
	case n.SoftLineBreak():
		c.emit(SoftBreak{})
	}
}

func (c *converter) codeSpan(n *ast.CodeSpan) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			value := t.Segment.Value(c.source)
			if bytes.HasSuffix(value, []byte("\n")) {
				buf.Write(value[:len(value)-1])
				buf.WriteByte(' ')
			} else {
				buf.Write(value)
			}
		case *ast.String:
			buf.Write(t.Value)
		}
	}
	return buf.String()
}

func (c *converter) codeBlock(info string, lines *text.Segments) {
	tag := Tag{Kind: TagCodeBlock, Info: info}
	c.emit(Start{Tag: tag})
	var buf bytes.Buffer
	c.writeLines(&buf, lines)
	if buf.Len() > 0 {
		c.emit(Text{Text: buf.String()})
	}
	c.emit(End{Tag: tag})
}

func (c *converter) writeLines(buf *bytes.Buffer, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(c.source))
	}
}

// linkTag builds the tag of a link or image, resolving placeholder
// destinations through the resolver.
func (c *converter) linkTag(kind TagKind, n ast.Node, dest, title []byte) Tag {
	tag := Tag{Kind: kind, Dest: string(dest), Title: string(title)}
	label, broken := strings.CutPrefix(tag.Dest, brokenDest)
	if !broken {
		return tag
	}
	raw, ok := c.labels[label]
	if !ok {
		raw = label
	}
	inner := c.plainText(n)
	span := "[" + inner + "]"
	if util.ToLinkReference([]byte(inner)) != label {
		span += "[" + raw + "]"
	}
	if kind == TagImage {
		span = "!" + span
	}
	tag.Dest, tag.Title = c.resolver.Resolve(BrokenLink{Label: raw, Span: span, Image: kind == TagImage})
	return tag
}

func (c *converter) plainText(n ast.Node) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(c.source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
