// Package dom is the document-query primitive used by the extraction stages.
// It wraps antchfx/htmlquery so callers select by XPath and always receive an
// ordered, possibly empty, sequence of matches instead of an error.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Node is one match of a query: an element, a text node, or an attribute
// value. The zero Node is valid and matches nothing.
type Node struct {
	n *html.Node
}

// Parse builds a document from an HTML body.
func Parse(body []byte) (Node, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return Node{}, fmt.Errorf("parse html: %w", err)
	}
	return Node{n: doc}, nil
}

// MustParse is Parse for fixtures known to be well formed.
func MustParse(body string) Node {
	doc, err := Parse([]byte(body))
	if err != nil {
		panic(err)
	}
	return doc
}

// Valid reports whether n refers to a node.
func (n Node) Valid() bool { return n.n != nil }

// Select evaluates path relative to n and returns the matches in document
// order. A path that matches nothing, or that does not compile, yields nil.
func (n Node) Select(path string) []Node {
	if n.n == nil {
		return nil
	}
	found, err := htmlquery.QueryAll(n.n, path)
	if err != nil || len(found) == 0 {
		return nil
	}
	out := make([]Node, 0, len(found))
	for _, f := range found {
		out = append(out, Node{n: f})
	}
	return out
}

// SelectOne returns the first match of path, or the zero Node.
func (n Node) SelectOne(path string) Node {
	matches := n.Select(path)
	if len(matches) == 0 {
		return Node{}
	}
	return matches[0]
}

// Text returns the string value of n: the concatenated text for elements, the
// data for text nodes, the value for attribute matches. It is not trimmed.
func (n Node) Text() string {
	if n.n == nil {
		return ""
	}
	return htmlquery.InnerText(n.n)
}

// Attr returns the named attribute of an element match.
func (n Node) Attr(name string) string {
	if n.n == nil {
		return ""
	}
	return htmlquery.SelectAttr(n.n, name)
}

// First returns the untrimmed string value of the first match of path.
func (n Node) First(path string) (string, bool) {
	match := n.SelectOne(path)
	if !match.Valid() {
		return "", false
	}
	return match.Text(), true
}

// FirstNonBlank returns the untrimmed string value of the first match of path
// that holds more than whitespace. Formatted markup often puts a blank text
// node ahead of the one that matters.
func (n Node) FirstNonBlank(path string) (string, bool) {
	for _, m := range n.Select(path) {
		if text := m.Text(); strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	return "", false
}

// Texts returns the string value of every match of path.
func (n Node) Texts(path string) []string {
	matches := n.Select(path)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Text())
	}
	return out
}

// Count returns the number of matches of path.
func (n Node) Count(path string) int {
	return len(n.Select(path))
}

// NormalizeSpace collapses runs of whitespace into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
