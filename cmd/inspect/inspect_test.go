package inspect

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	dstest "github.com/tphakala/birdnet-api2ha/internal/datastore/testutil"
	"github.com/tphakala/birdnet-api2ha/internal/mqtt"
)

func newRepo(t *testing.T, path string) *datastore.Repository {
	t.Helper()
	repo, err := datastore.New(datastore.Config{Path: path})
	require.NoError(t, err)
	return repo
}

func TestInspectModernDatabase(t *testing.T) {
	t.Parallel()

	fx := dstest.NewModern(t)
	fx.AddDetections(t,
		dstest.Detection().WithID(7),
		dstest.Detection().WithID(42).WithSpecies("Parus major"),
	)

	r := Inspect(context.Background(), newRepo(t, fx.Path))
	assert.Equal(t, Report{
		DatabaseType:   datastore.SourceSQLite,
		Database:       fx.Path,
		Available:      true,
		Schema:         "modern",
		MaxDetectionID: 42,
		Detections:     2,
	}, r)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, &r))
	out := buf.String()
	assert.Contains(t, out, "Schema:")
	assert.Contains(t, out, "modern")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "(not configured)")
}

func TestInspectLegacyDatabase(t *testing.T) {
	t.Parallel()

	fx := dstest.NewLegacy(t)
	fx.AddNotes(t, dstest.Note().WithID(3))

	r := Inspect(context.Background(), newRepo(t, fx.Path))
	assert.Equal(t, "legacy", r.Schema)
	assert.Equal(t, int64(3), r.MaxDetectionID)
	assert.Equal(t, int64(1), r.Detections)
	assert.Empty(t, r.Error)
}

func TestInspectUnknownSchema(t *testing.T) {
	t.Parallel()

	fx := dstest.NewEmpty(t)
	r := Inspect(context.Background(), newRepo(t, fx.Path))
	assert.Equal(t, "unknown", r.Schema)
	assert.Zero(t, r.Detections)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, &r))
	assert.NotContains(t, buf.String(), "Detections:")
}

func TestInspectMissingDatabase(t *testing.T) {
	t.Parallel()

	r := Inspect(context.Background(), newRepo(t, filepath.Join(t.TempDir(), "absent.db")))
	assert.False(t, r.Available)
	assert.Empty(t, r.Schema)
	assert.Empty(t, r.Error)
}

func TestInspectCorruptDatabase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "birdnet.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not an sqlite database "), 200), 0o600))

	r := Inspect(context.Background(), newRepo(t, path))
	assert.True(t, r.Available)
	assert.NotEmpty(t, r.Error)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, &r))
	assert.Contains(t, buf.String(), "Error:")
}

func TestPrintMQTTStages(t *testing.T) {
	t.Parallel()

	r := Report{
		DatabaseType: "sqlite",
		MQTT: []mqtt.StageResult{
			{Name: "DNS Resolution", Skipped: true},
			{Name: "TCP Connection", Success: true, Duration: 3 * time.Millisecond},
			{Name: "MQTT Connection", Error: "connection refused"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, &r))
	out := buf.String()
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "ok (3ms)")
	assert.Contains(t, out, "FAILED: connection refused")
}
