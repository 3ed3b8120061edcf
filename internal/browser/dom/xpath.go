// browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// GenerateUniqueXPath builds a positional XPath for node, anchored on the
// nearest ancestor (or the node itself) whose id is unique in the document.
func GenerateUniqueXPath(node *html.Node) string {
	if node == nil {
		return ""
	}
	root := documentRoot(node)

	var path []string
	anchored := false
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			anchor := IDXPath(id)
			// Duplicate ids are common in drifting markup; only anchor on a unique one.
			if nodes, err := htmlquery.QueryAll(root, anchor); err == nil && len(nodes) == 1 {
				path = append(path, anchor)
				anchored = true
				break
			}
		}

		path = append(path, fmt.Sprintf("%s[%d]", tag, siblingIndex(n, tag)))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	xpath := strings.Join(path, "/")
	if !anchored {
		xpath = "/" + xpath
	}
	return xpath
}

// IDXPath returns the attribute-based XPath selecting elements by id.
func IDXPath(id string) string {
	return fmt.Sprintf("//*[@id=%s]", Literal(id))
}

// Literal quotes s as an XPath string literal. XPath 1.0 has no escape
// sequence, so values containing both quote kinds are built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

// siblingIndex is the 1-based position of n among same-tag element siblings.
func siblingIndex(n *html.Node, tag string) int {
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			index++
		}
	}
	return index
}

func documentRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}
