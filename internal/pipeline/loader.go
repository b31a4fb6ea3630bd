package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Document is a loaded input ready for sentence splitting
type Document struct {
	// Source is the path or URL the text came from
	Source string

	// Subject is a short human-readable title
	Subject string

	// Text is the plain text, one block per line for HTML inputs
	Text string
}

// Loader reads plain text, Markdown and HTML files, and fetches URLs
type Loader struct {
	fetcher *Fetcher
}

// NewLoader creates a loader. A nil fetcher rejects URL inputs.
func NewLoader(fetcher *Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// IsURL reports whether input names an http(s) resource
func IsURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Load returns the text of one input
func (l *Loader) Load(ctx context.Context, input string) (*Document, error) {
	if IsURL(input) {
		return l.loadURL(ctx, input)
	}
	return loadFile(input)
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (*Document, error) {
	if l.fetcher == nil {
		return nil, fmt.Errorf("load %s: URL inputs are not enabled", rawURL)
	}

	result, err := l.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}

	text := result.Body
	if result.IsHTML() {
		text, err = ExtractText(result.Body, result.FinalURL)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", rawURL, err)
		}
	}

	return &Document{Source: result.FinalURL, Subject: result.Subject, Text: text}, nil
}

func loadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	text := strings.TrimPrefix(string(data), "\uFEFF")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		text, err = ExtractText(text, "")
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	base := filepath.Base(path)
	return &Document{
		Source:  path,
		Subject: strings.TrimSuffix(base, filepath.Ext(base)),
		Text:    text,
	}, nil
}

// blockElements end the current line of extracted text
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// source line breaks inside a text node are layout, not structure
var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// ExtractText returns the visible text of an HTML document with one
// block element per line. Scripts, styles and navigation are skipped, and
// pages from known sites are narrowed to their article body.
func ExtractText(htmlContent, sourceURL string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	adapter := findAdapter(sourceURL)
	root := adapter.Root(doc)
	if root == nil {
		root = genericAdapter{}.Root(doc)
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "head", "template":
				return
			}
			if adapter.Skip(n) {
				return
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(lineBreaks.Replace(n.Data))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(root)

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
