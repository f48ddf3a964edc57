package markdown

import (
	"strings"

	"github.com/yuin/goldmark/util"
)

const leafletPrelude = `
<div id="llmap">
<p>There should be a map here.</p>
</div>
<script type="text/javascript">
  function initmap() {
  var map = L.map('llmap', {scrollWheelZoom: false})
  .addLayer(L.tileLayer('//{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&#xA9; <a href="http://osm.org/copyright">OpenStreetMaps bidragsgivare</a>',
  }));
`

// codeBlock dispatches a fenced block on its info string: "!name args"
// selects a directive, anything else is a language to highlight.
func (r *htmlRenderer) codeBlock(info, code string) error {
	directive, isDirective := strings.CutPrefix(info, "!")
	if !isDirective {
		r.pre(info, code)
		return nil
	}
	name, args, _ := strings.Cut(directive, " ")
	switch name {
	case "leaflet":
		r.buf.WriteString(leafletPrelude)
		r.buf.WriteString(code)
		r.buf.WriteString("}\n</script>\n")
		return nil
	case "qr":
		return r.qr(code, strings.TrimSpace(args))
	case "embed":
		return r.embed(code)
	default:
		return authoringf("!"+name, "no such code block directive")
	}
}

func (r *htmlRenderer) pre(lang, code string) {
	r.buf.WriteString("<pre")
	if lang != "" {
		r.buf.WriteString(` data-lang="`)
		r.buf.Write(util.EscapeHTML([]byte(lang)))
		r.buf.WriteByte('"')
	}
	r.buf.WriteByte('>')
	if lang != "" {
		if lexer := lexerFor(lang); lexer != nil {
			mark := r.buf.Len()
			err := highlight(&r.buf, lexer, code)
			if err == nil {
				r.buf.WriteString("</pre>\n")
				return
			}
			r.buf.Truncate(mark)
			r.env.logger().Warn("Highlighting failed", "lang", lang, "error", err)
		} else {
			r.env.logger().Warn("Unknown language, no highlighting for this block", "lang", lang, "page", r.page.URL())
		}
	}
	r.buf.Write(util.EscapeHTML([]byte(code)))
	r.buf.WriteString("</pre>\n")
}
