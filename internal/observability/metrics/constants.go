// Package metrics provides constants used across metric definitions.
package metrics

// Namespace prefixes every metric exported by the service.
const Namespace = "birdnet_api2ha"

// Datastore operation labels.
const (
	// OpListDetections represents detection listing queries.
	OpListDetections = "list_detections"
	// OpAggregateStats represents per-species aggregation queries.
	OpAggregateStats = "aggregate_stats"
	// OpMaxDetectionID represents watermark lookups.
	OpMaxDetectionID = "max_detection_id"
	// OpClipPath represents clip path lookups.
	OpClipPath = "clip_path"
	// OpClassify represents schema classification.
	OpClassify = "classify"
)

// Status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Poll cycle outcomes recorded by the bridge.
const (
	PollIdle      = "idle"
	PollPublished = "published"
	PollError     = "error"
)

// Bucket layouts.
var (
	durationBuckets   = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	resultSizeBuckets = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500}
)
