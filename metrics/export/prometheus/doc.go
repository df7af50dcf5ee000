// Package prometheus renders the coordinator's counters in Prometheus
// text exposition format.
//
// [NewExporter] accepts a [authkit.Coordinator] and exposes an
// [http.Handler] suitable for mounting at /metrics. Counter names are
// prefixed authkit_*_total.
//
// Nothing is registered in a global Prometheus registry; callers mount
// the Handler themselves.
package prometheus
