// Package metrics provides Prometheus metrics collection for the provider,
// router, cache, and storage layers.
//
// A single Collector registers every metric vector once via promauto and is
// threaded through the pipeline explicitly; callers record observations
// through its Record* methods rather than reaching for global state.
package metrics
