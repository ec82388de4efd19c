// Package datastore provides read-only access to a BirdNET-Go detection
// database in either of its two layouts.
//
// Every Repository call opens its own short-lived connection, classifies the
// schema, runs one query and releases the connection, so no handle is held
// between calls and the file may come and go underneath.
package datastore

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/birdnet-api2ha/internal/conf"
	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
	"github.com/tphakala/birdnet-api2ha/internal/observability/metrics"
)

// defaultSlowThreshold is the statement duration logged as slow.
const defaultSlowThreshold = 500 * time.Millisecond

// Config configures a Repository.
type Config struct {
	// Type is SourceSQLite (default) or SourceMySQL.
	Type  string
	Path  string
	MySQL MySQLConfig
	// Location interprets date_start/date_end for the modern layout. Nil
	// means time.Local.
	Location *time.Location
	// SchemaTTL caches classifications per database fingerprint. Zero
	// classifies on every call.
	SchemaTTL     time.Duration
	SlowThreshold time.Duration
}

// ConfigFromSettings maps service settings onto a repository configuration.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		Type: s.DatabaseType,
		Path: s.DatabasePath,
		MySQL: MySQLConfig{
			Host:     s.MySQL.Host,
			Port:     s.MySQL.Port,
			Database: s.MySQL.Database,
			Username: s.MySQL.Username,
			Password: s.MySQL.Password,
		},
		Location:  s.Location(),
		SchemaTTL: s.SchemaCacheTTL(),
	}
}

// Repository serves detection queries over an externally owned database.
// It is safe for concurrent use.
type Repository struct {
	cfg     Config
	log     logger.Logger
	metrics *metrics.DatastoreMetrics
	schemas *schemaCache
	gormLog *logger.GormAdapter
}

// Option configures optional Repository dependencies.
type Option func(*Repository)

// WithLogger sets the module logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics records operation metrics.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// New creates a Repository. It does not touch the database.
func New(cfg Config, opts ...Option) (*Repository, error) {
	if err := validateSource(&cfg); err != nil {
		return nil, err
	}
	if cfg.Type == "" {
		cfg.Type = SourceSQLite
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = defaultSlowThreshold
	}

	r := &Repository{
		cfg:     cfg,
		log:     logger.NewSlogLogger(nil, logger.LogLevelError, nil),
		schemas: newSchemaCache(cfg.SchemaTTL),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.gormLog = logger.NewGormAdapter(r.log, cfg.SlowThreshold)
	return r, nil
}

// Type returns the configured source type.
func (r *Repository) Type() string {
	return r.cfg.Type
}

// Location returns a printable description of the database location.
func (r *Repository) Location() string {
	if r.cfg.Type == SourceMySQL {
		return r.cfg.MySQL.Username + "@" + r.cfg.MySQL.Host + ":" + strconv.Itoa(r.cfg.MySQL.Port) + "/" + r.cfg.MySQL.Database
	}
	return r.cfg.Path
}

// Available reports whether the database can be expected to answer. For
// SQLite this means the file exists; MySQL is always assumed reachable.
func (r *Repository) Available() bool {
	if r.cfg.Type == SourceMySQL {
		return true
	}
	if r.cfg.Path == "" {
		return false
	}
	return isRegularFile(r.cfg.Path)
}

// ListDetections returns canonical records matching q. Without AfterID the
// newest come first; with AfterID ids ascend. At most MaxLimit rows are returned.
func (r *Repository) ListDetections(ctx context.Context, q DetectionQuery) ([]Detection, error) {
	var out []Detection
	err := r.run(ctx, metrics.OpListDetections, func(s *session, t translator) error {
		var err error
		out, err = t.listDetections(ctx, s.db, &q, r.cfg.Location)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveResultSize(metrics.OpListDetections, len(out))
	return out, nil
}

// AggregateStats returns per-species counts in the range, highest count first.
func (r *Repository) AggregateStats(ctx context.Context, q StatsQuery) ([]SpeciesCount, error) {
	var out []SpeciesCount
	err := r.run(ctx, metrics.OpAggregateStats, func(s *session, t translator) error {
		var err error
		out, err = t.aggregateStats(ctx, s.db, &q, r.cfg.Location)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveResultSize(metrics.OpAggregateStats, len(out))
	return out, nil
}

// MaxDetectionID returns the highest detection id, or 0 for an empty table.
func (r *Repository) MaxDetectionID(ctx context.Context) (int64, error) {
	var id int64
	err := r.run(ctx, metrics.OpMaxDetectionID, func(s *session, t translator) error {
		var err error
		id, err = t.maxDetectionID(ctx, s.db)
		return err
	})
	return id, err
}

// CountDetections returns the total number of detections.
func (r *Repository) CountDetections(ctx context.Context) (int64, error) {
	var n int64
	err := r.run(ctx, "count_detections", func(s *session, t translator) error {
		var err error
		n, err = t.countDetections(ctx, s.db)
		return err
	})
	return n, err
}

// ClipPath returns the stored clip reference of detection id. It fails with
// a not-found error when the id does not exist or has no clip.
func (r *Repository) ClipPath(ctx context.Context, id string) (string, error) {
	numericID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || numericID <= 0 {
		return "", detectionNotFoundError(id)
	}

	var clip string
	var found bool
	err = r.run(ctx, metrics.OpClipPath, func(s *session, t translator) error {
		var err error
		clip, found, err = t.clipName(ctx, s.db, numericID)
		return err
	})
	if err != nil {
		return "", err
	}
	if !found || clip == "" {
		return "", detectionNotFoundError(id)
	}
	return clip, nil
}

// Schema classifies the database without running a query.
func (r *Repository) Schema(ctx context.Context) (SchemaKind, error) {
	s, err := r.open(ctx)
	if err != nil {
		return SchemaUnknown, err
	}
	defer r.release(s)

	return r.classify(ctx, s)
}

// run opens a session, classifies it, dispatches fn to the matching
// translator and always releases the session.
func (r *Repository) run(ctx context.Context, op string, fn func(*session, translator) error) (err error) {
	start := time.Now()
	kind := SchemaUnknown
	defer func() {
		r.metrics.RecordOperation(op, kind.String(), time.Since(start), err)
	}()

	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer r.release(s)

	kind, err = r.classify(ctx, s)
	if err != nil {
		return err
	}

	t, ok := translatorFor(kind)
	if !ok {
		return schemaError(op)
	}

	if err := fn(s, t); err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return err
		}
		return timedStorageError(err, op, time.Since(start))
	}
	return nil
}

// open starts a session. gorm.Open mutates its config, so each session
// gets a fresh one.
func (r *Repository) open(ctx context.Context) (*session, error) {
	gormCfg := &gorm.Config{
		Logger:                 r.gormLog,
		SkipDefaultTransaction: true,
	}
	switch r.cfg.Type {
	case SourceMySQL:
		return openMySQL(ctx, &r.cfg.MySQL, gormCfg)
	default:
		return openSQLite(r.cfg.Path, gormCfg)
	}
}

func (r *Repository) release(s *session) {
	if err := s.release(); err != nil {
		r.log.Warn("failed to release database connection", logger.Error(err))
	}
}

func (r *Repository) classify(ctx context.Context, s *session) (SchemaKind, error) {
	start := time.Now()
	kind, hit, err := r.schemas.classify(s.fingerprint, func() (SchemaKind, error) {
		return Classify(ctx, s.db)
	})
	if r.schemas != nil {
		r.metrics.RecordSchemaCache(hit)
	}
	if err != nil {
		r.metrics.RecordOperation(metrics.OpClassify, SchemaUnknown.String(), time.Since(start), err)
		return SchemaUnknown, storageError(err, metrics.OpClassify)
	}

	if !hit {
		r.metrics.RecordOperation(metrics.OpClassify, kind.String(), time.Since(start), nil)
		r.metrics.SetSchema(kind.String(), SchemaModern.String(), SchemaLegacy.String(), SchemaUnknown.String())
		r.log.Debug("schema classified",
			logger.String("schema", kind.String()),
			logger.String("database", filepath.Base(r.Location())))
	}
	return kind, nil
}
