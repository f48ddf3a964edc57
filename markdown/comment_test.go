package markdown

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderComment(t *testing.T, raw string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, RenderComment(&buf, raw))
	return buf.String()
}

func TestCommentEscapesHTML(t *testing.T) {
	assert.Equal(t, "<p>Hej &lt;b&gt;där&lt;/b&gt;!</p>\n", renderComment(t, "Hej <b>där</b>!"))

	got := renderComment(t, "<script>alert(1)</script>\n\nText")
	assert.Contains(t, got, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, got, "<script")
	assert.Contains(t, got, "<p>Text</p>")
}

func TestCommentHeadingsMovedDown(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"# A\n\n## B", "<h3>A</h3>\n<h4>B</h4>\n"},
		{"### A\n\n#### B", "<h3>A</h3>\n<h4>B</h4>\n"},
		{"##### A", "<h3>A</h3>\n"},
		{"# A\n\n###### B", "<h3>A</h3>\n<h6>B</h6>\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renderComment(t, tt.input), tt.input)
	}
}

func TestCommentUnsafeLinks(t *testing.T) {
	assert.Equal(t, "<p>klicka</p>\n", renderComment(t, "[klicka](javascript:alert(1))"))
	assert.Equal(t, `<p><a href="https://example.com/">ok</a></p>`+"\n", renderComment(t, "[ok](https://example.com/)"))
	assert.NotContains(t, renderComment(t, "![bild](data:image/png;base64,AAAA)"), "<img")
	assert.NotContains(t, renderComment(t, "<javascript:alert(1)>"), "href")
}

func TestCommentComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Comment("*hej*").Render(context.Background(), &buf))
	assert.Equal(t, "<p><em>hej</em></p>\n", buf.String())
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/?a=1&b=2", "https://example.com/?a=1&amp;b=2"},
		{"http://example.com", "http://example.com"},
		{"mailto:a@example.com", "mailto:a@example.com"},
		{"tel:+46-8-123456", "tel:+46-8-123456"},
		{"TEL:112", "TEL:112"},
		{"/2024/post.sv", "/2024/post.sv"},
		{"#del", "#del"},
		{"javascript:alert(1)", ""},
		{"JaVaScRiPt:alert(1)", ""},
		{"data:text/html,x", ""},
		{"relative/path", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.input); got != tt.expected {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
