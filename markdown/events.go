// Package markdown compiles the blog's markdown dialect to HTML, and
// renders untrusted comments.
package markdown

import "fmt"

// Event is one token of the structural stream produced by Parse.
// The concrete types below are the complete set; consumers switch over
// them and treat anything they do not handle as an error.
type Event interface {
	event()
}

// TagKind identifies the element a Start/End pair delimits.
type TagKind int

const (
	TagParagraph TagKind = iota
	TagHeading
	TagBlockQuote
	TagCodeBlock
	TagList
	TagItem
	TagTable
	TagTableHead
	TagTableRow
	TagTableCell
	TagEmphasis
	TagStrong
	TagStrikethrough
	TagLink
	TagImage
	TagFootnoteDefinition
)

var tagKindNames = map[TagKind]string{
	TagParagraph:          "Paragraph",
	TagHeading:            "Heading",
	TagBlockQuote:         "BlockQuote",
	TagCodeBlock:          "CodeBlock",
	TagList:               "List",
	TagItem:               "Item",
	TagTable:              "Table",
	TagTableHead:          "TableHead",
	TagTableRow:           "TableRow",
	TagTableCell:          "TableCell",
	TagEmphasis:           "Emphasis",
	TagStrong:             "Strong",
	TagStrikethrough:      "Strikethrough",
	TagLink:               "Link",
	TagImage:              "Image",
	TagFootnoteDefinition: "FootnoteDefinition",
}

func (k TagKind) String() string {
	if name, ok := tagKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TagKind(%d)", int(k))
}

// Tag carries the attributes of a container element. Only the fields
// relevant to Kind are set.
type Tag struct {
	Kind TagKind

	// Heading
	Level   int
	ID      string
	Classes []string

	// CodeBlock: the complete fence info string, e.g. "!qr caption".
	Info string

	// List
	Ordered bool
	Start   int

	// Link and Image
	Dest  string
	Title string

	// FootnoteDefinition
	Label string
}

type (
	Start             struct{ Tag Tag }
	End               struct{ Tag Tag }
	Text              struct{ Text string }
	Code              struct{ Text string }
	HTML              struct{ Raw string }
	InlineHTML        struct{ Raw string }
	SoftBreak         struct{}
	HardBreak         struct{}
	Rule              struct{}
	TaskListMarker    struct{ Checked bool }
	FootnoteReference struct{ Label string }
)

func (Start) event()             {}
func (End) event()               {}
func (Text) event()              {}
func (Code) event()              {}
func (HTML) event()              {}
func (InlineHTML) event()        {}
func (SoftBreak) event()         {}
func (HardBreak) event()         {}
func (Rule) event()              {}
func (TaskListMarker) event()    {}
func (FootnoteReference) event() {}

func isEnd(ev Event, kind TagKind) bool {
	e, ok := ev.(End)
	return ok && e.Tag.Kind == kind
}
