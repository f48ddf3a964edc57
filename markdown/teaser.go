package markdown

import (
	"regexp"
	"strings"
)

// TeaserLimits tune where a long post is cut for its teaser. Both are
// counted in characters after the title line.
type TeaserLimits struct {
	// MinLength is the shortest text that gets a teaser at all.
	MinLength int
	// Window is how far from the start a cut is searched for.
	Window int
}

// DefaultTeaserLimits are used when an Env has zero limits.
var DefaultTeaserLimits = TeaserLimits{MinLength: 900, Window: 600}

const moreMarker = "<!-- more -->"

var (
	frontFigureRe = regexp.MustCompile(`(?s)!\[[^\]]*\]\[[^\]\{]*\{[^\}]*\bfront\b[^\}]*\}[^\]]*\]`)
	localAnchorRe = regexp.MustCompile(`\]\(#([a-z0-9_-]+)\)`)
	atxHeadingRe  = regexp.MustCompile(`\n {0,3}#{1,6}(?:[ \t]|\n|$)`)
	codeFenceRe   = regexp.MustCompile("^ {0,3}(```+|~~~+)")
)

// FindTeaserCut returns the offset in body where the teaser ends, if the
// post should have a teaser. An explicit "<!-- more -->" wins; otherwise
// long posts are cut at the first heading in the window, else the last
// paragraph break in the window, else the first paragraph break after it.
// Nothing inside a fenced code block counts as a cut. The offset is
// always a rune boundary.
func FindTeaserCut(body string, limits TeaserLimits) (int, bool) {
	if limits == (TeaserLimits{}) {
		limits = DefaultTeaserLimits
	}
	if i := strings.Index(body, moreMarker); i >= 0 {
		return i, true
	}
	start := len(body)
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		start = i
	}
	rest := body[start:]
	if runeCount(rest) < limits.MinLength {
		return 0, false
	}
	// Candidates before the first paragraph would leave the teaser empty.
	lead := len(rest) - len(strings.TrimLeft(rest, "\n"))
	window := rest[:runeOffset(rest, limits.Window)]
	fences := fencedRanges(rest)
	if lead < len(window) {
		for _, m := range atxHeadingRe.FindAllStringIndex(rest[lead:], -1) {
			i := lead + m[0]
			if i >= len(window) {
				break
			}
			if !inRanges(fences, i) {
				return start + i, true
			}
		}
		w := window[lead:]
		for i := strings.LastIndex(w, "\n\n"); i >= 0; i = strings.LastIndex(w[:i], "\n\n") {
			if !inRanges(fences, lead+i) {
				return start + lead + i, true
			}
		}
	}
	for i := max(len(window), lead); ; {
		j := strings.Index(rest[i:], "\n\n")
		if j < 0 {
			return 0, false
		}
		if !inRanges(fences, i+j) {
			return start + i + j, true
		}
		i += j + 1
	}
}

// fencedRanges returns the byte ranges of the fenced code blocks in s,
// from the start of the opening line to the end of the closing one. An
// unclosed fence runs to the end of s.
func fencedRanges(s string) [][2]int {
	var ranges [][2]int
	open, marker := -1, ""
	for pos := 0; pos < len(s); {
		end := strings.IndexByte(s[pos:], '\n')
		if end < 0 {
			end = len(s)
		} else {
			end += pos
		}
		line := s[pos:end]
		if m := codeFenceRe.FindStringSubmatch(line); m != nil {
			switch {
			case open < 0:
				open, marker = pos, m[1]
			case m[1][0] == marker[0] && len(m[1]) >= len(marker) && strings.TrimSpace(line[len(m[0]):]) == "":
				ranges = append(ranges, [2]int{open, end})
				open = -1
			}
		}
		pos = end + 1
	}
	if open >= 0 {
		ranges = append(ranges, [2]int{open, len(s)})
	}
	return ranges
}

func inRanges(ranges [][2]int, i int) bool {
	for _, r := range ranges {
		if i >= r[0] && i < r[1] {
			return true
		}
	}
	return false
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// runeOffset is the byte offset of the n:th rune of s, or len(s).
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// adjustTeaser prepares the cut markdown for standalone rendering: it
// brings in the front image, the update note and absolute anchors.
func adjustTeaser(doc Document, teaser string) string {
	if !strings.Contains(teaser, "\n![") {
		if img := frontFigureRe.FindString(doc.Body); img != "" {
			at := len(teaser)
			if i := strings.Index(teaser, "\n\n"); i >= 0 {
				at = i + 1
			} else if i := strings.IndexByte(teaser, '\n'); i >= 0 {
				at = i + 1
			}
			teaser = teaser[:at] + "\n" + strings.ReplaceAll(img, "gallery", "sidebar") + "\n" + teaser[at:]
		}
	}
	if u := doc.Meta.Update; u != nil && u.Note != "" {
		teaser = strings.TrimRight(teaser, "\n") + "\n\n**" + updatedAt(doc.Page.Lang, u.Date) + "** " + u.Note
	}
	return localAnchorRe.ReplaceAllString(teaser, "]("+doc.Page.URL()+"#$1)")
}
