package markdown

import (
	"strings"

	"github.com/yuin/goldmark/util"
)

// Summarize flattens an event stream into one line of escaped text,
// suitable for description meta tags and feeds.
func Summarize(events []Event) (string, error) {
	var b strings.Builder
	text := func(s string) { b.Write(util.EscapeHTML([]byte(s))) }
	for i := 0; i < len(events); i++ {
		switch ev := events[i].(type) {
		case Text:
			text(ev.Text)
		case Code:
			text(ev.Text)
		case Start:
			switch ev.Tag.Kind {
			case TagCodeBlock:
				for i++; i < len(events) && !isEnd(events[i], TagCodeBlock); i++ {
					t, ok := events[i].(Text)
					if !ok {
						return "", authoringf(describe(events[i]), "unexpected event in code block")
					}
					text(t.Text)
				}
				b.WriteByte(' ')
			case TagImage:
				for i++; i < len(events) && !isEnd(events[i], TagImage); i++ {
				}
			case TagParagraph, TagTableHead, TagTableRow, TagTableCell:
				b.WriteByte(' ')
			case TagItem:
				b.WriteString(" * ")
			}
		case End:
			switch ev.Tag.Kind {
			case TagHeading:
				b.WriteString(": ")
			case TagParagraph, TagItem, TagTableHead, TagTableRow, TagTableCell:
				b.WriteByte(' ')
			}
		case TaskListMarker:
			if ev.Checked {
				b.WriteString("☑")
			} else {
				b.WriteString("☐")
			}
		case Rule:
			b.WriteString(" -- ")
		case SoftBreak, HardBreak, HTML, InlineHTML:
			b.WriteByte(' ')
		default:
			return "", authoringf(describe(ev), "unhandled event in summary")
		}
	}
	return strings.TrimSpace(collapseSpace(b.String())), nil
}
