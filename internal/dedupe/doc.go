// Package dedupe provides activity deduplication using a time-based cache
// to suppress redelivered activity ids within a configurable window.
package dedupe
