package markdown

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark/util"
)

type galleryState int

const (
	galleryClosed galleryState = iota
	galleryOpen
)

// paragraph tracks the innermost open <p>, so that figures never end up
// inside one and a paragraph left empty by a figure disappears.
type paragraph struct {
	inside   bool
	start    int  // offset of "<p>" in the output
	body     int  // offset after "<p>" and any reopened inline tags
	suppress bool // reopened after a figure
}

// inlineTag is an inline element still open in the output.
type inlineTag struct {
	open, close string
	at          int  // offset just after open
	reopened    bool // written again after a figure
}

type htmlRenderer struct {
	ctx  context.Context
	env  *Env
	page PageRef

	events []Event
	pos    int

	buf     bytes.Buffer
	depth   int // section depth, 1 is the page itself
	gallery galleryState
	para    paragraph
	inline  []inlineTag
}

// RenderHTML renders an event stream. Headings open nested sections,
// code blocks go through the directive handlers, and images become
// figures with data from the image server.
func RenderHTML(ctx context.Context, env *Env, page PageRef, events []Event) (string, error) {
	r := &htmlRenderer{ctx: ctx, env: env, page: page, events: events, depth: 1}
	for r.pos < len(r.events) {
		ev := r.next()
		if err := r.event(ev); err != nil {
			return "", err
		}
	}
	r.closeGallery()
	for ; r.depth > 1; r.depth-- {
		r.buf.WriteString("</section>")
	}
	return r.buf.String(), nil
}

func (r *htmlRenderer) next() Event {
	ev := r.events[r.pos]
	r.pos++
	return ev
}

func (r *htmlRenderer) event(ev Event) error {
	switch ev := ev.(type) {
	case Start:
		return r.start(ev.Tag)
	case End:
		r.end(ev.Tag)
	case Text:
		r.inlineContent()
		r.buf.Write(util.EscapeHTML([]byte(ev.Text)))
	case Code:
		r.inlineContent()
		r.buf.WriteString("<code>")
		r.buf.Write(util.EscapeHTML([]byte(ev.Text)))
		r.buf.WriteString("</code>")
	case HTML:
		r.closeGallery()
		r.buf.WriteString(ev.Raw)
	case InlineHTML:
		r.inlineContent()
		r.env.logger().Warn("Inline html in content", "page", r.page.URL(), "html", ev.Raw)
		r.buf.WriteString(ev.Raw)
	case SoftBreak:
		r.buf.WriteByte('\n')
	case HardBreak:
		r.buf.WriteString("<br/>\n")
	case Rule:
		r.closeGallery()
		r.buf.WriteString("<hr/>\n")
	case TaskListMarker:
		if ev.Checked {
			r.buf.WriteString("<input disabled type='checkbox' checked=''/>\n")
		} else {
			r.buf.WriteString("<input disabled type='checkbox'/>\n")
		}
	default:
		return authoringf(describe(ev), "unhandled markdown event")
	}
	return nil
}

var tagNames = map[TagKind]string{
	TagBlockQuote:    "blockquote",
	TagEmphasis:      "em",
	TagStrong:        "strong",
	TagStrikethrough: "del",
	TagItem:          "li",
	TagTable:         "table",
	TagTableRow:      "tr",
	TagTableCell:     "td",
}

func (r *htmlRenderer) start(tag Tag) error {
	switch tag.Kind {
	case TagHeading:
		r.closeGallery()
		r.heading(tag)
	case TagParagraph:
		r.openParagraph(false)
	case TagCodeBlock:
		r.closeGallery()
		code, err := r.collectCode()
		if err != nil {
			return err
		}
		return r.codeBlock(tag.Info, code)
	case TagImage:
		return r.image(tag)
	case TagLink:
		r.inlineContent()
		open := fmt.Sprintf(`<a href="%s"`, util.EscapeHTML(util.URLEscape([]byte(tag.Dest), true)))
		if tag.Title != "" {
			open += fmt.Sprintf(` title="%s"`, util.EscapeHTML([]byte(tag.Title)))
		}
		r.pushInline(open+">", "</a>")
	case TagList:
		r.closeGallery()
		switch {
		case !tag.Ordered:
			r.buf.WriteString("<ul>\n")
		case tag.Start != 1:
			fmt.Fprintf(&r.buf, "<ol start='%d'>\n", tag.Start)
		default:
			r.buf.WriteString("<ol>\n")
		}
	case TagTableHead:
		r.buf.WriteString("<thead><tr>")
	default:
		switch tag.Kind {
		case TagTable, TagBlockQuote:
			r.closeGallery()
		case TagEmphasis, TagStrong, TagStrikethrough:
			r.inlineContent()
			name := tagNames[tag.Kind]
			r.pushInline("<"+name+">", "</"+name+">")
			return nil
		}
		name, ok := tagNames[tag.Kind]
		if !ok {
			fmt.Fprintf(&r.buf, "<!-- start %s -->", tag.Kind)
			return nil
		}
		fmt.Fprintf(&r.buf, "<%s>", name)
	}
	return nil
}

func (r *htmlRenderer) end(tag Tag) {
	switch tag.Kind {
	case TagHeading:
		open := fmt.Sprintf("<h%d>", tag.Level)
		if bytes.HasSuffix(r.buf.Bytes(), []byte(open)) {
			r.buf.Truncate(r.buf.Len() - len(open))
		} else {
			fmt.Fprintf(&r.buf, "</h%d>\n", tag.Level)
		}
	case TagParagraph:
		if r.para.suppress && r.paragraphEmpty() {
			r.buf.Truncate(r.para.start)
		} else {
			r.buf.WriteString("</p>\n")
		}
		r.para = paragraph{}
	case TagLink, TagEmphasis, TagStrong, TagStrikethrough:
		r.popInline()
	case TagList:
		if tag.Ordered {
			r.buf.WriteString("</ol>\n")
		} else {
			r.buf.WriteString("</ul>\n")
		}
	case TagTableHead:
		r.buf.WriteString("</tr></thead>\n")
	default:
		name, ok := tagNames[tag.Kind]
		if !ok {
			fmt.Fprintf(&r.buf, "<!-- end %s -->", tag.Kind)
			return
		}
		fmt.Fprintf(&r.buf, "</%s>", name)
		if tag.Kind == TagTable || tag.Kind == TagItem {
			r.buf.WriteByte('\n')
		}
	}
}

// heading closes sections down to the heading's level, opens filler
// sections for skipped levels and then the heading's own section.
func (r *htmlRenderer) heading(tag Tag) {
	level := max(tag.Level, 2)
	for r.depth >= level {
		r.buf.WriteString("</section>")
		r.depth--
	}
	r.buf.WriteByte('\n')
	for r.depth+1 < level {
		r.buf.WriteString("<section>")
		r.depth++
	}
	r.buf.WriteString("<section")
	if tag.ID != "" {
		fmt.Fprintf(&r.buf, ` id="%s"`, util.EscapeHTML([]byte(tag.ID)))
	}
	if len(tag.Classes) > 0 {
		fmt.Fprintf(&r.buf, ` class="%s"`, util.EscapeHTML([]byte(strings.Join(tag.Classes, " "))))
	}
	r.buf.WriteByte('>')
	r.depth = level
	fmt.Fprintf(&r.buf, "<h%d>", tag.Level)
}

func (r *htmlRenderer) openParagraph(suppress bool) {
	r.para = paragraph{inside: true, start: r.buf.Len(), suppress: suppress}
	r.buf.WriteString("<p>")
	r.para.body = r.buf.Len()
}

func (r *htmlRenderer) paragraphEmpty() bool {
	if !r.para.inside {
		return false
	}
	return len(bytes.TrimSpace(r.buf.Bytes()[r.para.body:])) == 0
}

// truncate cuts the output back to n, keeping the paragraph body offset
// inside it.
func (r *htmlRenderer) truncate(n int) {
	r.buf.Truncate(n)
	if r.para.body > n {
		r.para.body = n
	}
}

func (r *htmlRenderer) pushInline(open, close string) {
	r.buf.WriteString(open)
	r.inline = append(r.inline, inlineTag{open: open, close: close, at: r.buf.Len()})
}

// popInline closes the innermost inline element. One that was reopened
// after a figure and got no content is removed instead.
func (r *htmlRenderer) popInline() {
	if len(r.inline) == 0 {
		return
	}
	t := r.inline[len(r.inline)-1]
	r.inline = r.inline[:len(r.inline)-1]
	if t.reopened && r.buf.Len() == t.at {
		r.truncate(t.at - len(t.open))
		return
	}
	r.buf.WriteString(t.close)
}

// closeInline writes the end tags of all open inline elements, innermost
// first, dropping those that are still empty. The stack is kept so that
// reopenInline can continue them.
func (r *htmlRenderer) closeInline() {
	for i := len(r.inline) - 1; i >= 0; i-- {
		t := r.inline[i]
		if r.buf.Len() == t.at {
			r.truncate(t.at - len(t.open))
		} else {
			r.buf.WriteString(t.close)
		}
	}
}

func (r *htmlRenderer) reopenInline() {
	for i := range r.inline {
		r.buf.WriteString(r.inline[i].open)
		r.inline[i].at = r.buf.Len()
		r.inline[i].reopened = true
	}
	if r.para.inside {
		r.para.body = r.buf.Len()
	}
}

// leaveParagraph steps out of the current paragraph before a figure,
// dropping it if nothing was written to it yet. Open inline elements are
// closed first and continued by resumeParagraph.
func (r *htmlRenderer) leaveParagraph() bool {
	if !r.para.inside {
		return false
	}
	r.closeInline()
	if r.paragraphEmpty() {
		r.truncate(r.para.start)
	} else {
		r.buf.WriteString("</p>\n")
	}
	r.para = paragraph{}
	return true
}

// resumeParagraph continues a paragraph left for a figure.
func (r *htmlRenderer) resumeParagraph() {
	r.openParagraph(true)
	r.reopenInline()
}

// inlineContent is called before text is written. Text in a paragraph
// that is still empty ends a running gallery, before the paragraph.
func (r *htmlRenderer) inlineContent() {
	if r.gallery == galleryOpen && r.paragraphEmpty() {
		r.truncate(r.para.start)
		r.closeGallery()
		r.openParagraph(false)
		r.reopenInline()
	}
}

func (r *htmlRenderer) openGallery() {
	if r.gallery == galleryClosed {
		r.buf.WriteString("<div class='gallery'>")
		r.gallery = galleryOpen
	}
}

func (r *htmlRenderer) closeGallery() {
	if r.gallery == galleryOpen {
		r.buf.WriteString("</div>\n")
		r.gallery = galleryClosed
	}
}

// collectCode consumes the text of a code block up to its end.
func (r *htmlRenderer) collectCode() (string, error) {
	var code strings.Builder
	for r.pos < len(r.events) {
		switch ev := r.next().(type) {
		case Text:
			code.WriteString(ev.Text)
		case End:
			if ev.Tag.Kind == TagCodeBlock {
				return code.String(), nil
			}
			return "", authoringf(describe(ev), "unexpected event in code block")
		default:
			return "", authoringf(describe(ev), "unexpected event in code block")
		}
	}
	return "", authoringf("code block", "unterminated code block")
}

// collectInline consumes events up to the end of kind as plain text.
func (r *htmlRenderer) collectInline(kind TagKind) string {
	var text strings.Builder
	for r.pos < len(r.events) {
		ev := r.next()
		if isEnd(ev, kind) {
			break
		}
		switch ev := ev.(type) {
		case Text:
			text.WriteString(ev.Text)
		case Code:
			text.WriteString(ev.Text)
		case SoftBreak, HardBreak:
			text.WriteByte(' ')
		}
	}
	return text.String()
}
