// Package internaldefs holds the metric name definitions shared by the
// exporter implementations.
//
// Counter definitions live here so the Prometheus and OTel exporters
// expose identical metric names. A change in this package affects all
// exporters at once.
package internaldefs
