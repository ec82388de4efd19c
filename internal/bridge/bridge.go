// Package bridge publishes newly inserted detections to an MQTT topic.
//
// The bridge polls the upstream database on a fixed interval and keeps a
// watermark: the highest detection id already handled. The watermark lives
// in memory only; after a restart the bridge resumes from the then-current
// maximum id, so detections inserted while it was down are never published.
package bridge

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/tphakala/birdnet-api2ha/internal/conf"
	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
	"github.com/tphakala/birdnet-api2ha/internal/mqtt"
	"github.com/tphakala/birdnet-api2ha/internal/observability/metrics"
)

// BatchLimit is the most detections published per poll cycle.
const BatchLimit = datastore.MaxLimit

// Source is the read side of the detection repository used by the bridge.
type Source interface {
	Available() bool
	MaxDetectionID(ctx context.Context) (int64, error)
	ListDetections(ctx context.Context, q datastore.DetectionQuery) ([]datastore.Detection, error)
}

// Config configures a Bridge.
type Config struct {
	Topic    string
	Interval time.Duration
	// BurstPolicy is conf.BurstSkip (default) or conf.BurstResume.
	BurstPolicy string
}

// ConfigFromSettings maps the mqtt settings block onto a bridge configuration.
func ConfigFromSettings(s *conf.MQTTSettings) Config {
	return Config{
		Topic:       s.Topic,
		Interval:    s.PollInterval(),
		BurstPolicy: s.BurstPolicy,
	}
}

// Message is the payload published for each detection. The audio path is
// deliberately not part of it.
type Message struct {
	ID             string  `json:"id"`
	Timestamp      string  `json:"timestamp"`
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Confidence     float64 `json:"confidence"`
}

// Bridge polls a Source and publishes new detections through an MQTT client.
// A Bridge runs once; it is not safe to call Run concurrently.
type Bridge struct {
	cfg     Config
	source  Source
	client  mqtt.Client
	log     logger.Logger
	metrics *metrics.BridgeMetrics

	// watermark is owned by the Run goroutine.
	watermark int64
}

// Option configures optional Bridge dependencies.
type Option func(*Bridge)

// WithLogger sets the module logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics records poll cycle metrics.
func WithMetrics(m *metrics.BridgeMetrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a Bridge.
func New(cfg Config, source Source, client mqtt.Client, opts ...Option) (*Bridge, error) {
	if source == nil || client == nil {
		return nil, errors.Newf("bridge requires a detection source and an MQTT client").
			Component("bridge").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Interval <= 0 {
		return nil, errors.Newf("bridge poll interval must be positive, got %s", cfg.Interval).
			Component("bridge").
			Category(errors.CategoryConfiguration).
			Build()
	}
	switch cfg.BurstPolicy {
	case "":
		cfg.BurstPolicy = conf.BurstSkip
	case conf.BurstSkip, conf.BurstResume:
	default:
		return nil, errors.Newf("unknown burst policy %q", cfg.BurstPolicy).
			Component("bridge").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Topic == "" {
		cfg.Topic = conf.DefaultMQTTTopic
	}

	b := &Bridge{
		cfg:    cfg,
		source: source,
		client: client,
		log:    logger.NewSlogLogger(nil, logger.LogLevelError, nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run connects to the broker, records the current maximum id as the
// watermark and then polls until ctx is cancelled or publishing fails.
//
// If the database is not available at start Run returns nil without
// connecting. A failure to connect or to read the baseline is returned.
// Storage failures inside a cycle are logged and retried next cycle.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.source.Available() {
		b.log.Info("database not available, bridge not started")
		return nil
	}

	if err := b.client.Connect(ctx); err != nil {
		return err
	}
	defer b.client.Disconnect()

	baseline, err := b.source.MaxDetectionID(ctx)
	if err != nil {
		return errors.New(err).
			Component("bridge").
			Category(errors.CategoryState).
			Context("stage", "baseline").
			Build()
	}
	b.setWatermark(baseline)

	b.log.Info("bridge started",
		logger.Int64("watermark", baseline),
		logger.String("topic", b.cfg.Topic),
		logger.Duration("interval", b.cfg.Interval),
		logger.String("burst_policy", b.cfg.BurstPolicy))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("bridge stopped", logger.Int64("watermark", b.watermark))
			return nil
		case <-ticker.C:
			if err := b.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Watermark returns the highest id already handled. It is only meaningful
// from the goroutine running the bridge or after Run returned.
func (b *Bridge) Watermark() int64 {
	return b.watermark
}

func (b *Bridge) setWatermark(id int64) {
	b.watermark = id
	b.metrics.SetWatermark(id)
}

// pollOnce runs one cycle. Only publish failures are returned; read
// failures are logged and leave the watermark untouched.
func (b *Bridge) pollOnce(ctx context.Context) error {
	currentMax, err := b.source.MaxDetectionID(ctx)
	if err != nil {
		b.logReadFailure("max id", err)
		b.metrics.RecordCycle(metrics.PollError, 0, 0)
		return nil
	}
	if currentMax <= b.watermark {
		b.metrics.RecordCycle(metrics.PollIdle, 0, 0)
		return nil
	}

	after := b.watermark
	batch, err := b.source.ListDetections(ctx, datastore.DetectionQuery{AfterID: &after, Limit: BatchLimit})
	if err != nil {
		b.logReadFailure("list detections", err)
		b.metrics.RecordCycle(metrics.PollError, 0, 0)
		return nil
	}

	var highest int64
	for i := range batch {
		if err := b.publish(ctx, &batch[i]); err != nil {
			return err
		}
		if id, err := strconv.ParseInt(batch[i].ID, 10, 64); err == nil && id > highest {
			highest = id
		}
	}

	next, skipped := b.advance(currentMax, highest, len(batch))
	if skipped > 0 {
		b.log.Warn("detection burst exceeded batch limit, rows skipped",
			logger.Int("published", len(batch)),
			logger.Int64("from_id", highest+1),
			logger.Int64("to_id", currentMax))
	}
	b.setWatermark(next)
	b.metrics.RecordCycle(metrics.PollPublished, len(batch), skipped)

	b.log.Debug("poll cycle published detections",
		logger.Int("count", len(batch)),
		logger.Int64("watermark", next))
	return nil
}

// advance picks the next watermark. skip jumps to the observed maximum, so
// when the batch was capped the remainder is never published. resume stops
// at the highest published id when the batch was capped. skipped is an
// upper bound on the ids passed over.
func (b *Bridge) advance(currentMax, highestPublished int64, published int) (next int64, skipped int) {
	capped := published >= BatchLimit && highestPublished > 0 && highestPublished < currentMax
	if !capped {
		return currentMax, 0
	}
	if b.cfg.BurstPolicy == conf.BurstResume {
		return highestPublished, 0
	}
	return currentMax, int(currentMax - highestPublished)
}

func (b *Bridge) publish(ctx context.Context, d *datastore.Detection) error {
	payload, err := json.Marshal(Message{
		ID:             d.ID,
		Timestamp:      d.Timestamp,
		CommonName:     d.CommonName,
		ScientificName: d.ScientificName,
		Confidence:     d.Confidence,
	})
	if err != nil {
		return errors.New(err).
			Component("bridge").
			Category(errors.CategoryMQTTPublish).
			Context("detection_id", d.ID).
			Build()
	}
	if err := b.client.Publish(ctx, b.cfg.Topic, payload); err != nil {
		return err
	}
	b.log.Trace("published detection",
		logger.String("detection_id", d.ID),
		logger.String("scientific_name", d.ScientificName),
		logger.Float64("confidence", d.Confidence))
	return nil
}

func (b *Bridge) logReadFailure(stage string, err error) {
	level := b.log.Warn
	if datastore.IsSchemaError(err) {
		level = b.log.Error
	}
	level("poll cycle failed, retrying next interval",
		logger.String("stage", stage),
		logger.Int64("watermark", b.watermark),
		logger.Error(err))
}
