package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanContent_StripsLinksAndImages(t *testing.T) {
	in := `<p>Read <a href="https://example.com">the docs</a> now</p><img src="pic.png" alt="pic"/>`
	out := CleanContent(in)
	assert.Contains(t, out, "the docs")
	assert.NotContains(t, out, "example.com")
	assert.NotContains(t, out, "pic.png")
}

func TestCleanContent_CollapsesBlankLines(t *testing.T) {
	out := CleanContent(`<p>one</p><p>two</p><p>three</p>`)
	assert.NotContains(t, out, "\n\n")
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "three")
}

func TestContentSplit(t *testing.T) {
	split := ContentSplit(`<p>first paragraph</p><p>second paragraph</p>`)
	require.Len(t, split.Tokens, len(split.Chunks))
	require.Len(t, split.Characters, len(split.Chunks))
	assert.GreaterOrEqual(t, len(split.Chunks), 2)
	assert.Contains(t, split.Chunks, "first paragraph")
	assert.Contains(t, split.Chunks, "second paragraph")
}

func TestMarkdownToHTML(t *testing.T) {
	assert.Equal(t, "<p><strong>bold</strong> text</p>", MarkdownToHTML("**bold** text"))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("hello world")
	assert.NotEmpty(t, tokens)
	assert.Equal(t, len(tokens), CountTokens("hello world"))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "auto", DetectLanguage("", ""))
	lang := DetectLanguage("The quick brown fox jumps over the lazy dog", "This is a plain English sentence used for language detection.")
	assert.Equal(t, "en", lang)
}
