package textutil

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipAncestors lists elements whose text must never be translated.
var skipAncestors = map[string]bool{
	"pre":     true,
	"code":    true,
	"script":  true,
	"style":   true,
	"head":    true,
	"title":   true,
	"meta":    true,
	"abbr":    true,
	"address": true,
	"samp":    true,
	"kbd":     true,
	"bdo":     true,
	"cite":    true,
	"dfn":     true,
	"iframe":  true,
}

// inlineTags are flattened to their inner text before tag-mode
// translation, so sentences split across formatting tags reach the
// engine as one text node.
var inlineTags = map[string]bool{
	"i":      true,
	"a":      true,
	"strong": true,
	"b":      true,
	"em":     true,
	"span":   true,
	"sup":    true,
	"sub":    true,
	"mark":   true,
	"del":    true,
	"ins":    true,
	"u":      true,
	"s":      true,
	"small":  true,
}

var (
	urlPattern   = regexp.MustCompile(`^http`)
	emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	// Digits, punctuation, symbols and whitespace only. Spelled out with
	// unicode classes because \W in RE2 is ASCII-only and would swallow
	// every CJK or Cyrillic text node.
	numericPattern = regexp.MustCompile(`^[\d\p{P}\p{S}\p{Z}\s]+$`)
)

// ParseFragment parses an HTML fragment into a detached body container
// whose children are the fragment's top-level nodes.
func ParseFragment(s string) (*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, err
	}
	container := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// RenderChildren serializes the container's children back to HTML.
func RenderChildren(container *html.Node) string {
	var buf bytes.Buffer
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// UnwrapInlineTags flattens inline formatting tags to their inner text,
// preserving document order. Block structure is untouched.
func UnwrapInlineTags(container *html.Node) {
	child := container.FirstChild
	for child != nil {
		next := child.NextSibling
		UnwrapInlineTags(child)
		if child.Type == html.ElementNode && inlineTags[child.Data] {
			for child.FirstChild != nil {
				grand := child.FirstChild
				child.RemoveChild(grand)
				container.InsertBefore(grand, child)
			}
			container.RemoveChild(child)
		}
		child = next
	}
}

// WalkTextNodes visits every text node under container in document order.
func WalkTextNodes(container *html.Node, visit func(*html.Node)) {
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			visit(c)
			continue
		}
		WalkTextNodes(c, visit)
	}
}

// ShouldSkip reports whether a node's text must not be sent for
// translation: comments, text inside skip-listed ancestors, empty text,
// bare URLs, email addresses, and digits-and-punctuation-only strings.
func ShouldSkip(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && skipAncestors[p.Data] {
			return true
		}
	}
	text := strings.TrimSpace(nodeText(n))
	if text == "" {
		return true
	}
	return urlPattern.MatchString(text) || emailPattern.MatchString(text) || numericPattern.MatchString(text)
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var buf strings.Builder
	WalkTextNodes(n, func(t *html.Node) {
		buf.WriteString(t.Data)
	})
	return buf.String()
}
