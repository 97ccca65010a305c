// Package sink turns crawled records into stamped envelopes and fans them out
// to the configured writers: blob exports, databases and message streams.
package sink
