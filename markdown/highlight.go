package markdown

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlightClassPrefix prefixes every css class chroma emits.
const highlightClassPrefix = "syh-"

// formatter is shared by all renders; chroma formatters are safe for
// concurrent use once built.
var formatter = sync.OnceValue(func() *chromahtml.Formatter {
	return chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.ClassPrefix(highlightClassPrefix),
		chromahtml.PreventSurroundingPre(true),
	)
})

// lexerFor finds a lexer by language token, e.g. "go" or "rust".
func lexerFor(lang string) chroma.Lexer {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return nil
	}
	return chroma.Coalesce(lexer)
}

func highlight(buf *bytes.Buffer, lexer chroma.Lexer, code string) error {
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	return formatter().Format(buf, styles.Fallback, it)
}

// StyleCSS returns the stylesheet for highlighted code in the named
// chroma style.
func StyleCSS(style string) (string, error) {
	s, ok := styles.Registry[style]
	if !ok {
		return "", fmt.Errorf("no style %q, known styles: %v", style, styles.Names())
	}
	var buf bytes.Buffer
	if err := formatter().WriteCSS(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
