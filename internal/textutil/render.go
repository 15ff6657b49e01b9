package textutil

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"

	"babelfeed/internal/logger"
)

var htmlRenderer = goldmark.New()

// MarkdownToHTML renders Markdown as HTML. Engines answer in Markdown;
// feed entries carry HTML. Returns the input unchanged on failure.
func MarkdownToHTML(markdown string) string {
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(markdown), &buf); err != nil {
		logger.Error("markdown render failed", "module", "textutil", "action", "render", "resource", "markdown", "result", "failed", "error", err)
		return markdown
	}
	return strings.TrimSpace(buf.String())
}
