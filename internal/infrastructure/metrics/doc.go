// Package metrics exposes expvar-published counters and gauges used by the
// gremlin runtime (graph computer, scheduler, and message board). It is
// rendered for scraping by WritePrometheus and by the CLI's --metrics flag.
package metrics
