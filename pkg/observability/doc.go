/*
Package observability exposes Prometheus metrics for redo runs.

Metrics records task decisions through domain.LifecycleHooks and whole runs
through ObserveRun. The collected series can be served over HTTP with Handler
or written to a node_exporter textfile with WriteTextfile, which suits
one-shot CLI invocations that exit before anything could scrape them.

LogCollector reports the persisted state of every workflow in a log store at
scrape time.
*/
package observability
