// Package metrics defines the Prometheus collectors fieldsync records during a
// sync cycle and writes them to a node-exporter textfile.
//
// Each Recorder owns its registry so tests and parallel engines never collide
// on the global default registry.
package metrics
