// Package metrics provides datastore metrics for observability
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for the read-only detection store
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	resultSize        *prometheus.HistogramVec
	schemaCacheTotal  *prometheus.CounterVec
	schemaKind        *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "datastore_operations_total",
			Help:      "Total number of datastore operations",
		},
		[]string{"operation", "schema", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "datastore_operation_duration_seconds",
			Help:      "Time taken for datastore operations including open and close",
			Buckets:   durationBuckets,
		},
		[]string{"operation"},
	)

	m.resultSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "datastore_result_rows",
			Help:      "Number of rows returned by datastore queries",
			Buckets:   resultSizeBuckets,
		},
		[]string{"operation"},
	)

	m.schemaCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "datastore_schema_cache_total",
			Help:      "Schema classification cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	m.schemaKind = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "datastore_schema",
			Help:      "Last classified schema of the upstream database (1 for the active kind)",
		},
		[]string{"schema"},
	)

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.resultSize,
		m.schemaCacheTotal,
		m.schemaKind,
	}
}

// RecordOperation records one datastore operation with its outcome
func (m *DatastoreMetrics) RecordOperation(operation, schema string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.operationsTotal.WithLabelValues(operation, schema, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveResultSize records how many rows an operation returned
func (m *DatastoreMetrics) ObserveResultSize(operation string, rows int) {
	if m == nil {
		return
	}
	m.resultSize.WithLabelValues(operation).Observe(float64(rows))
}

// RecordSchemaCache records a schema classification cache hit or miss
func (m *DatastoreMetrics) RecordSchemaCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.schemaCacheTotal.WithLabelValues(result).Inc()
}

// SetSchema marks schema as the active kind and clears the others
func (m *DatastoreMetrics) SetSchema(schema string, known ...string) {
	if m == nil {
		return
	}
	for _, k := range known {
		m.schemaKind.WithLabelValues(k).Set(0)
	}
	m.schemaKind.WithLabelValues(schema).Set(1)
}

// Describe implements the prometheus.Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
