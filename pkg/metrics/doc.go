/*
Package metrics provides Prometheus metrics collection and exposition for the
graphrag repository process.

Metrics are grouped by subsystem: repository size and WAL durability,
ingestion and extraction throughput, query latency and evidence volume,
community analytics, and the governance/audit layer. Collectors register
themselves at package init against the default Prometheus registry and are
served over HTTP via Handler, which callers mount at /metrics.

The Collector type polls repository size and the current WAL position into
the repository gauges on a fixed interval. No other package in this module
records into the remaining collectors; they are registered and exported for
callers, and the Timer helper measures an operation and observes its
duration against a histogram.
*/
package metrics
