// Package crawler implements the two-stage crawl engine: catalog pages fan out
// into detail requests, detail pages become records handed to a sink, and the
// run ends once no request is outstanding.
package crawler
