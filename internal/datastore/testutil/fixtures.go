// Package testutil builds BirdNET-Go database fixtures on disk for tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/birdnet-api2ha/internal/datastore/entities"
)

// batchSize is the number of rows inserted per statement.
const batchSize = 200

// Fixture is a writable SQLite database standing in for the upstream
// application's file.
type Fixture struct {
	Path string
	DB   *gorm.DB

	labels map[string]uint
}

// open creates (or reopens) a writable database at path.
func open(t *testing.T, path string) *Fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	f := &Fixture{Path: path, DB: db, labels: make(map[string]uint)}
	t.Cleanup(f.close)
	return f
}

func (f *Fixture) close() {
	if sqlDB, err := f.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewModern creates a database with the detections and labels tables.
func NewModern(t *testing.T) *Fixture {
	t.Helper()
	f := open(t, filepath.Join(t.TempDir(), "birdnet.db"))
	require.NoError(t, f.DB.AutoMigrate(&entities.Label{}, &entities.Detection{}))
	return f
}

// NewLegacy creates a database with only the notes table.
func NewLegacy(t *testing.T) *Fixture {
	t.Helper()
	f := open(t, filepath.Join(t.TempDir(), "birdnet.db"))
	require.NoError(t, f.DB.AutoMigrate(&entities.Note{}))
	return f
}

// NewEmpty creates a database with an unrelated table, so it is neither layout.
func NewEmpty(t *testing.T) *Fixture {
	t.Helper()
	f := open(t, filepath.Join(t.TempDir(), "birdnet.db"))
	require.NoError(t, f.DB.Exec("CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT)").Error)
	return f
}

// NewWithTables creates bare tables by name, for classification tests.
func NewWithTables(t *testing.T, tables ...string) *Fixture {
	t.Helper()
	f := open(t, filepath.Join(t.TempDir(), "birdnet.db"))
	for _, name := range tables {
		require.NoError(t, f.DB.Exec("CREATE TABLE "+name+" (id INTEGER PRIMARY KEY)").Error)
	}
	if len(tables) == 0 {
		// SQLite creates the file lazily; force it onto disk.
		require.NoError(t, f.DB.Exec("PRAGMA user_version = 1").Error)
	}
	return f
}

// Label returns the id of the label for scientificName, creating it on first use.
func (f *Fixture) Label(t *testing.T, scientificName string) uint {
	t.Helper()
	if id, ok := f.labels[scientificName]; ok {
		return id
	}
	label := entities.Label{ScientificName: scientificName, ModelID: 1}
	require.NoError(t, f.DB.Create(&label).Error)
	f.labels[scientificName] = label.ID
	return label.ID
}

// AddDetections inserts modern-layout detections.
func (f *Fixture) AddDetections(t *testing.T, detections ...*DetectionBuilder) {
	t.Helper()
	rows := make([]entities.Detection, 0, len(detections))
	for _, b := range detections {
		d := b.detection
		d.LabelID = f.Label(t, b.species)
		rows = append(rows, d)
	}
	if len(rows) > 0 {
		require.NoError(t, f.DB.CreateInBatches(rows, batchSize).Error)
	}
}

// AddNotes inserts legacy-layout notes.
func (f *Fixture) AddNotes(t *testing.T, notes ...*NoteBuilder) {
	t.Helper()
	rows := make([]entities.Note, 0, len(notes))
	for _, b := range notes {
		rows = append(rows, b.note)
	}
	if len(rows) > 0 {
		require.NoError(t, f.DB.CreateInBatches(rows, batchSize).Error)
	}
}

// DetectionBuilder provides a fluent API for modern detections.
type DetectionBuilder struct {
	detection entities.Detection
	species   string
}

// Detection starts a modern detection with sensible defaults.
func Detection() *DetectionBuilder {
	return &DetectionBuilder{
		detection: entities.Detection{
			ModelID:    1,
			DetectedAt: time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC).Unix(),
			Confidence: 0.85,
		},
		species: "Turdus merula",
	}
}

// WithID sets the id.
func (b *DetectionBuilder) WithID(id uint) *DetectionBuilder {
	b.detection.ID = id
	return b
}

// WithSpecies sets the label's scientific name.
func (b *DetectionBuilder) WithSpecies(scientificName string) *DetectionBuilder {
	b.species = scientificName
	return b
}

// At sets the detection time.
func (b *DetectionBuilder) At(ts time.Time) *DetectionBuilder {
	b.detection.DetectedAt = ts.Unix()
	return b
}

// AtEpoch sets the detection time in epoch seconds.
func (b *DetectionBuilder) AtEpoch(epoch int64) *DetectionBuilder {
	b.detection.DetectedAt = epoch
	return b
}

// WithConfidence sets the confidence.
func (b *DetectionBuilder) WithConfidence(c float64) *DetectionBuilder {
	b.detection.Confidence = c
	return b
}

// WithClip sets the clip name.
func (b *DetectionBuilder) WithClip(name string) *DetectionBuilder {
	b.detection.ClipName = &name
	return b
}

// NoteBuilder provides a fluent API for legacy notes.
type NoteBuilder struct {
	note entities.Note
}

// Note starts a legacy note with sensible defaults.
func Note() *NoteBuilder {
	return &NoteBuilder{
		note: entities.Note{
			SourceNode:     "test-node",
			Date:           "2024-05-01",
			Time:           "06:30:00",
			ScientificName: "Turdus merula",
			CommonName:     "Eurasian Blackbird",
			Confidence:     0.85,
			Threshold:      0.7,
			Sensitivity:    1.0,
		},
	}
}

// WithID sets the id.
func (b *NoteBuilder) WithID(id uint) *NoteBuilder {
	b.note.ID = id
	return b
}

// WithSpecies sets both names.
func (b *NoteBuilder) WithSpecies(scientificName, commonName string) *NoteBuilder {
	b.note.ScientificName = scientificName
	b.note.CommonName = commonName
	return b
}

// On sets the date and time columns verbatim.
func (b *NoteBuilder) On(date, clock string) *NoteBuilder {
	b.note.Date = date
	b.note.Time = clock
	return b
}

// WithConfidence sets the confidence.
func (b *NoteBuilder) WithConfidence(c float64) *NoteBuilder {
	b.note.Confidence = c
	return b
}

// WithClip sets the clip name.
func (b *NoteBuilder) WithClip(name string) *NoteBuilder {
	b.note.ClipName = name
	return b
}
