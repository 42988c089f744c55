// Package adapters parses scraped HTML pages: candidate profiles, cohort
// index listings and news announcements.
package adapters

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/tntracker/internal/extract"
)

// Adapter is an extract.Parser for one family of HTML pages
type Adapter interface {
	extract.Parser

	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter understands the given URL/content
	CanHandle(url string, contentType string) bool
}

// Registry manages page adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters. Pages no
// specific adapter claims are read as announcements.
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	registry.Register(NewProfileAdapter())

	registry.generic = NewAnnouncementAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the best adapter for the given URL and content type
func (r *Registry) FindAdapter(url string, contentType string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(url, contentType) {
			return adapter
		}
	}
	return r.generic
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct{}

// ParseHTML parses raw bytes into a node tree
func (b *BaseAdapter) ParseHTML(data []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(data))
}

// ExtractText extracts text content from a node with whitespace collapsed
func (b *BaseAdapter) ExtractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch {
		case node.Type == html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteByte(' ')
			return
		case node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style"):
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// IsElement reports whether n is an element with one of the given tags.
func (b *BaseAdapter) IsElement(n *html.Node, tags ...string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// FindAll finds all nodes matching a predicate
func (b *BaseAdapter) FindAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// FindFirst finds the first node matching a predicate
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// NextElementSibling returns the next sibling element with the given tag.
func (b *BaseAdapter) NextElementSibling(n *html.Node, tag string) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == tag {
			return s
		}
	}
	return nil
}
