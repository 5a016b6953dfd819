// Package prometheus renders engine counters in Prometheus text
// exposition format.
//
// [NewExporter] accepts an engine and exposes an http.Handler serving all
// counters with the sessionguard_*_total prefix. Nothing is registered in
// a global Prometheus registry; callers mount the Handler where they want
// it.
package prometheus
