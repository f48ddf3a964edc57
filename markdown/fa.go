package markdown

import (
	"fmt"
	"regexp"
	"strconv"
)

// FaRef is a reference to an issue of the Fantomen magazine, written as
// "Fa 17/1984" or "Fa 2-3 2019" by the author.
type FaRef struct {
	Issue int
	Year  int
}

var faRefRe = regexp.MustCompile(`\b[Ff]a ([1-9]\d?)(-[1-9]\d?)?[ /]((?:19|20)\d{2})\b`)

// ParseFaRef finds the first magazine issue reference in s.
func ParseFaRef(s string) (FaRef, bool) {
	m := faRefRe.FindStringSubmatch(s)
	if m == nil {
		return FaRef{}, false
	}
	issue, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	return FaRef{Issue: issue, Year: year}, true
}

// URL is the index page of the issue.
func (f FaRef) URL() string {
	return fmt.Sprintf("https://fantomenindex.krats.se/%d/%d", f.Year, f.Issue)
}

// CoverURL is the cover image of the issue.
func (f FaRef) CoverURL() string {
	return fmt.Sprintf("https://fantomenindex.krats.se/c/f%d-%d.jpg", f.Year, f.Issue)
}
