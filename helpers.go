package pubmark

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/eringen/pubmark/markdown"
)

// Slugify converts a tag name or title to a URL-safe slug. Diacritics
// are folded, so "Åsa Öberg" becomes "asa-oberg".
func Slugify(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func postURL(year int, slug, lang string) string {
	return markdown.PageRef{Year: year, Slug: slug, Lang: lang}.URL()
}

// BuildURL joins a base URL with a site path.
func BuildURL(base string, sitePath string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return sitePath
	}
	u.Path = path.Join(u.Path, sitePath)
	return u.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitFileName splits "slug.lang.md" into slug and lang.
func splitFileName(name string) (slug, lang string, err error) {
	stem := strings.TrimSuffix(filepath.Base(name), ".md")
	slug, lang, ok := strings.Cut(stem, ".")
	if !ok || slug == "" || lang == "" {
		return "", "", fmt.Errorf("no language in file name %q", name)
	}
	return slug, lang, nil
}
