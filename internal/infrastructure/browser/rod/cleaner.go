package rod

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

type CleanConfig struct {
	TagsToRemove  []string
	AttrsToRemove []string
	// AttrPrefixesToRemove drops every attribute whose key starts with one of these.
	AttrPrefixesToRemove []string
	MaxOutputSize        int
}

// DefaultCleanConfig keeps structure, text, ids, classes, links and aria labels,
// which is what the agent needs to locate schedule tables.
var DefaultCleanConfig = CleanConfig{
	TagsToRemove: []string{
		"script", "style", "noscript", "svg", "iframe",
		"link", "meta", "head", "title", "img", "canvas",
	},
	AttrsToRemove: []string{
		"style", "srcset", "sizes", "loading", "decoding", "fetchpriority", "tabindex",
	},
	AttrPrefixesToRemove: []string{"data-", "on"},
	MaxOutputSize:        18_000,
}

const truncationNote = "\n<!-- truncated -->"

// CleanHTML reduces a page to the markup of its <body> with noise removed.
func CleanHTML(rawHTML string, cfg *CleanConfig) (string, error) {
	if cfg == nil {
		cfg = &DefaultCleanConfig
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		return "", fmt.Errorf("parse html: no body element")
	}

	cleanNode(body, cfg)

	var sb strings.Builder
	if err := html.Render(&sb, body); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return truncate(collapseBlankLines(sb.String()), cfg.MaxOutputSize), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func cleanNode(n *html.Node, cfg *CleanConfig) {
	switch n.Type {
	case html.CommentNode:
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	case html.ElementNode:
	default:
		return
	}

	if isOneOf(n.Data, cfg.TagsToRemove) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}

	kept := n.Attr[:0]
	for _, attr := range n.Attr {
		if !dropAttr(attr.Key, cfg) {
			kept = append(kept, attr)
		}
	}
	n.Attr = kept

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c, cfg)
		c = next
	}
}

func dropAttr(key string, cfg *CleanConfig) bool {
	if isOneOf(key, cfg.AttrsToRemove) {
		return true
	}
	for _, p := range cfg.AttrPrefixesToRemove {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Join(out, "\n")
}

func truncate(s string, maxSize int) string {
	if maxSize <= 0 || len(s) <= maxSize {
		return s
	}
	return s[:maxSize] + truncationNote
}

func isOneOf(s string, candidates []string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
