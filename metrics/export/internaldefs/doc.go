// Package internaldefs exposes the stable metric name definitions shared
// by exporter implementations.
//
// Counter definitions live here so that the Prometheus and OTel exporters
// publish identical metric names. Changing a definition here changes all
// exporters simultaneously.
package internaldefs
