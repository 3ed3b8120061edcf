package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// CollapseWhitespace trims s and folds interior whitespace runs to one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateBytes cuts s to at most n bytes without splitting a UTF-8 sequence.
func TruncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TextContent concatenates every text node under n, like the DOM property.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	walkText(n, false, &sb)
	return sb.String()
}

// VisibleText approximates innerText for a static tree: script, style and
// template content is skipped and whitespace is collapsed.
func VisibleText(n *html.Node) string {
	var sb strings.Builder
	walkText(n, true, &sb)
	return CollapseWhitespace(sb.String())
}

func walkText(n *html.Node, visibleOnly bool, sb *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if visibleOnly {
			switch strings.ToLower(n.Data) {
			case "script", "style", "template", "noscript", "head":
				return
			case "br":
				sb.WriteByte(' ')
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, visibleOnly, sb)
		if visibleOnly && c.Type == html.ElementNode {
			// Block boundaries separate words in rendered text.
			sb.WriteByte(' ')
		}
	}
}
