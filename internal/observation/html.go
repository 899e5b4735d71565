// internal/observation/html.go
package observation

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// pruneHTML parses the structural snapshot and strips the parts the agent
// never needs: script, style and noscript subtrees plus comment nodes.
// On a parse failure the raw capture is returned as-is.
func pruneHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	pruneNode(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return raw
	}
	return buf.String()
}

var prunedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

func pruneNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && prunedElements[strings.ToLower(c.Data)]:
			n.RemoveChild(c)
		default:
			pruneNode(c)
		}
		c = next
	}
}
