package pipeline

import (
	"strings"

	"golang.org/x/net/html"
)

// ContentAdapter locates the main text of a page from a known site
type ContentAdapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter understands pages at sourceURL
	CanHandle(sourceURL string) bool

	// Root returns the node holding the page's main text, or nil
	Root(doc *html.Node) *html.Node

	// Skip reports whether a subtree inside the root is page furniture
	Skip(n *html.Node) bool
}

// adapters are tried in order; the generic adapter is the fallback
var adapters = []ContentAdapter{wikipediaAdapter{}}

// findAdapter finds the best adapter for the given source
func findAdapter(sourceURL string) ContentAdapter {
	for _, a := range adapters {
		if a.CanHandle(sourceURL) {
			return a
		}
	}
	return genericAdapter{}
}

// genericAdapter prefers <article>, then <main>, then the whole document
type genericAdapter struct{}

func (genericAdapter) Name() string           { return "generic" }
func (genericAdapter) CanHandle(string) bool  { return true }
func (genericAdapter) Skip(n *html.Node) bool { return false }

func (genericAdapter) Root(doc *html.Node) *html.Node {
	for _, tag := range []string{"article", "main"} {
		if n := findFirst(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == tag
		}); n != nil {
			return n
		}
	}
	return doc
}

// wikipediaAdapter reads the article body and drops citation markers,
// edit links, navigation boxes and reference lists
type wikipediaAdapter struct{}

func (wikipediaAdapter) Name() string { return "wikipedia" }

func (wikipediaAdapter) CanHandle(sourceURL string) bool {
	return strings.Contains(sourceURL, "wikipedia.org")
}

func (wikipediaAdapter) Root(doc *html.Node) *html.Node {
	return findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" &&
			(hasClass(n, "mw-parser-output") || attr(n, "id") == "mw-content-text")
	})
}

func (wikipediaAdapter) Skip(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range []string{"reference", "mw-editsection", "navbox", "reflist", "toc", "mw-references-wrap"} {
		if hasClass(n, class) {
			return true
		}
	}
	return false
}

// hasClass checks if a node has a specific CSS class
func hasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range strings.Fields(attr(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

// attr gets an attribute value from a node
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findFirst finds the first node matching a predicate, depth first
func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	if predicate(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, predicate); found != nil {
			return found
		}
	}
	return nil
}
