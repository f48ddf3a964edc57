package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, md string) []Event {
	t.Helper()
	events, err := Parse(md, &Resolver{Lang: "sv"})
	require.NoError(t, err)
	return events
}

func TestParseHeadingAttributes(t *testing.T) {
	events := parse(t, "## Rubrik {#ett .a .b}")
	require.NotEmpty(t, events)
	start, ok := events[0].(Start)
	require.True(t, ok)
	assert.Equal(t, TagHeading, start.Tag.Kind)
	assert.Equal(t, 2, start.Tag.Level)
	assert.Equal(t, "ett", start.Tag.ID)
	assert.Equal(t, []string{"a", "b"}, start.Tag.Classes)
	assert.Equal(t, Text{Text: "Rubrik"}, events[1])
}

func TestParseCodeBlockInfo(t *testing.T) {
	events := parse(t, "```!qr Min länk\nhttps://example.com/\n```\n")
	assert.Equal(t, []Event{
		Start{Tag: Tag{Kind: TagCodeBlock, Info: "!qr Min länk"}},
		Text{Text: "https://example.com/\n"},
		End{Tag: Tag{Kind: TagCodeBlock, Info: "!qr Min länk"}},
	}, events)
}

func TestParseIndentedCode(t *testing.T) {
	events := parse(t, "    x := 1\n")
	assert.Equal(t, []Event{
		Start{Tag: Tag{Kind: TagCodeBlock}},
		Text{Text: "x := 1\n"},
		End{Tag: Tag{Kind: TagCodeBlock}},
	}, events)
}

// mergeText joins adjacent text events, which the parser may split.
func mergeText(events []Event) []Event {
	var out []Event
	for _, ev := range events {
		if tx, ok := ev.(Text); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(Text); ok {
				out[len(out)-1] = Text{Text: prev.Text + tx.Text}
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestParseInline(t *testing.T) {
	events := parse(t, "a *b* **c** ~~d~~ `e`")
	assert.Equal(t, []Event{
		Start{Tag: Tag{Kind: TagParagraph}},
		Text{Text: "a "},
		Start{Tag: Tag{Kind: TagEmphasis}}, Text{Text: "b"}, End{Tag: Tag{Kind: TagEmphasis}},
		Text{Text: " "},
		Start{Tag: Tag{Kind: TagStrong}}, Text{Text: "c"}, End{Tag: Tag{Kind: TagStrong}},
		Text{Text: " "},
		Start{Tag: Tag{Kind: TagStrikethrough}}, Text{Text: "d"}, End{Tag: Tag{Kind: TagStrikethrough}},
		Text{Text: " "},
		Code{Text: "e"},
		End{Tag: Tag{Kind: TagParagraph}},
	}, mergeText(events))
}

func TestParseLineBreaks(t *testing.T) {
	events := mergeText(parse(t, "a\\\nb\nc"))
	assert.Equal(t, []Event{
		Start{Tag: Tag{Kind: TagParagraph}},
		Text{Text: "a"}, HardBreak{},
		Text{Text: "b"}, SoftBreak{},
		Text{Text: "c"},
		End{Tag: Tag{Kind: TagParagraph}},
	}, events)
}

func TestParseTaskList(t *testing.T) {
	events := parse(t, "- [x] klart\n- [ ] kvar\n")
	var markers []bool
	for _, ev := range events {
		if m, ok := ev.(TaskListMarker); ok {
			markers = append(markers, m.Checked)
		}
	}
	assert.Equal(t, []bool{true, false}, markers)
	assert.Equal(t, Start{Tag: Tag{Kind: TagList}}, events[0])
}

func TestParseOrderedListStart(t *testing.T) {
	events := parse(t, "3. tre\n4. fyra\n")
	assert.Equal(t, Start{Tag: Tag{Kind: TagList, Ordered: true, Start: 3}}, events[0])
}

func TestParseTable(t *testing.T) {
	events := parse(t, "| a | b |\n|---|---|\n| 1 | 2 |\n")
	var kinds []TagKind
	for _, ev := range events {
		if s, ok := ev.(Start); ok {
			kinds = append(kinds, s.Tag.Kind)
		}
	}
	assert.Equal(t, []TagKind{
		TagTable,
		TagTableHead, TagTableCell, TagTableCell,
		TagTableRow, TagTableCell, TagTableCell,
	}, kinds)
}

func TestParseRawHTML(t *testing.T) {
	events := parse(t, "<div class='x'>\nhej\n</div>\n\nett <b>fett</b> ord")
	assert.Equal(t, HTML{Raw: "<div class='x'>\nhej\n</div>\n"}, events[0])
	assert.Contains(t, events, InlineHTML{Raw: "<b>"})
	assert.Contains(t, events, InlineHTML{Raw: "</b>"})
}

func TestParseEscapesAndEntities(t *testing.T) {
	events := parse(t, `1 \* 2 &amp; 3 &#65;`)
	assert.Equal(t, Text{Text: "1 * 2 & 3 A"}, mergeText(events)[1])
}

func TestParseFootnoteReference(t *testing.T) {
	events := parse(t, "Text[^1].\n\n[^1]: Fotnot.\n")
	assert.Contains(t, events, FootnoteReference{Label: "1"})
}

func TestParseImageLabelKeepsCase(t *testing.T) {
	events := parse(t, "![Bild][Foto/IMG_1.JPG {gallery} Text]")
	var img Tag
	for _, ev := range events {
		if s, ok := ev.(Start); ok && s.Tag.Kind == TagImage {
			img = s.Tag
		}
	}
	assert.Equal(t, "Foto/IMG_1.JPG {gallery} Text", img.Dest)
}
