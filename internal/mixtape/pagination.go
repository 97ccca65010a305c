package mixtape

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/mixtape-crawler/internal/dom"
)

// ErrPagination reports a pagination widget that cannot be read.
var ErrPagination = errors.New("unparsable pagination")

// Pagination is the state of one catalog page's pagination widget.
type Pagination struct {
	Current int
	Next    int
	NextURL string
}

// HasNext reports whether the next control still advances. Once the catalog
// runs out of content the next control points back at the current page, so
// Current >= Next marks the end.
func (p Pagination) HasNext() bool {
	return p.Current < p.Next
}

// ParsePagination reads the active page number and the next control of page.
func ParsePagination(page dom.Node, base *url.URL) (Pagination, error) {
	activeText, ok := page.First(pathActivePage)
	if !ok {
		return Pagination{}, fmt.Errorf("%w: no active page marker", ErrPagination)
	}
	current, err := strconv.Atoi(strings.TrimSpace(activeText))
	if err != nil {
		return Pagination{}, fmt.Errorf("%w: active page %q: %w", ErrPagination, activeText, err)
	}

	href, ok := page.First(pathNextHref)
	if !ok || strings.TrimSpace(href) == "" {
		return Pagination{}, fmt.Errorf("%w: no next control", ErrPagination)
	}
	next, err := pageNumber(href)
	if err != nil {
		return Pagination{}, err
	}
	nextURL, err := ResolveURL(base, href)
	if err != nil {
		return Pagination{}, fmt.Errorf("%w: %w", ErrPagination, err)
	}
	return Pagination{Current: current, Next: next, NextURL: nextURL}, nil
}

// pageNumber reads the integer after the last '=' of a next-page href.
func pageNumber(href string) (int, error) {
	idx := strings.LastIndex(href, "=")
	if idx < 0 {
		return 0, fmt.Errorf("%w: next href %q has no page parameter", ErrPagination, href)
	}
	raw := strings.TrimSpace(href[idx+1:])
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: next page %q: %w", ErrPagination, raw, err)
	}
	return n, nil
}
