package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// BridgeMetrics tracks the detection poll loop.
type BridgeMetrics struct {
	Watermark         prometheus.Gauge
	PollCycles        *prometheus.CounterVec
	DetectionsSent    prometheus.Counter
	DetectionsSkipped prometheus.Counter
	LastPollTime      prometheus.Gauge
}

// NewBridgeMetrics creates and registers bridge metrics.
func NewBridgeMetrics(registry *prometheus.Registry) (*BridgeMetrics, error) {
	m := &BridgeMetrics{
		Watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "bridge_watermark",
			Help:      "Highest detection id the bridge has accounted for",
		}),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bridge_poll_cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"result"}),
		DetectionsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bridge_detections_published_total",
			Help:      "Detections published to the broker",
		}),
		DetectionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bridge_detections_skipped_total",
			Help:      "Detections passed over because a burst exceeded the per-cycle limit",
		}),
		LastPollTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "bridge_last_poll_time_seconds",
			Help:      "Timestamp of the last completed poll cycle",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register bridge metrics: %w", err)
	}
	return m, nil
}

// SetWatermark records the current watermark.
func (m *BridgeMetrics) SetWatermark(id int64) {
	if m == nil {
		return
	}
	m.Watermark.Set(float64(id))
}

// RecordCycle records a finished poll cycle.
func (m *BridgeMetrics) RecordCycle(result string, published, skipped int) {
	if m == nil {
		return
	}
	m.PollCycles.WithLabelValues(result).Inc()
	m.DetectionsSent.Add(float64(published))
	m.DetectionsSkipped.Add(float64(skipped))
	m.LastPollTime.SetToCurrentTime()
}

// Collect implements the prometheus.Collector interface.
func (m *BridgeMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Watermark
	m.PollCycles.Collect(ch)
	ch <- m.DetectionsSent
	ch <- m.DetectionsSkipped
	ch <- m.LastPollTime
}

// Describe implements the prometheus.Collector interface.
func (m *BridgeMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Watermark.Desc()
	m.PollCycles.Describe(ch)
	ch <- m.DetectionsSent.Desc()
	ch <- m.DetectionsSkipped.Desc()
	ch <- m.LastPollTime.Desc()
}
