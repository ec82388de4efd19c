package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildWithCategoryAndContext(t *testing.T) {
	t.Parallel()

	ee := Newf("database missing: %s", "/tmp/x.db").
		Component("datastore").
		Category(CategoryNotFound).
		Context("path", "/tmp/x.db").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.True(t, IsCategory(ee, CategoryNotFound))
	assert.Equal(t, string(CategoryNotFound), ee.GetCategory())
	assert.Equal(t, "/tmp/x.db", ee.GetContext()["path"])

	// context copy must not leak mutations back
	ctx := ee.GetContext()
	ctx["path"] = "changed"
	assert.Equal(t, "/tmp/x.db", ee.GetContext()["path"])
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := New(NewStd("locked")).Category(CategoryDatabase).Build()
	wrapped := fmt.Errorf("list detections: %w", inner)

	assert.True(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsCategory(wrapped, CategorySchema))
	assert.False(t, IsCategory(wrapped, CategoryNotFound))
}

func TestCategoryInheritedFromWrappedEnhancedError(t *testing.T) {
	t.Parallel()

	inner := New(NewStd("no such table")).Category(CategorySchema).Build()
	outer := New(fmt.Errorf("query failed: %w", inner)).Build()

	assert.Equal(t, CategorySchema, outer.Category)
}

func TestEnhancedErrorIsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryMQTTPublish).Build()
	b := New(NewStd("b")).Category(CategoryMQTTPublish).Build()
	c := New(NewStd("c")).Category(CategoryMQTTConnection).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestComponentFromFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		funcName string
		want     string
	}{
		{"internal package method", "github.com/tphakala/birdnet-api2ha/internal/datastore.(*Repository).ListDetections", "datastore"},
		{"internal package func", "github.com/tphakala/birdnet-api2ha/internal/bridge.New", "bridge"},
		{"cmd package", "github.com/tphakala/birdnet-api2ha/cmd/serve.Command.func1", "cmd/serve"},
		{"errors package skipped", "github.com/tphakala/birdnet-api2ha/internal/errors.New", ""},
		{"foreign package", "gorm.io/gorm.(*DB).Find", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, componentFromFunc(tt.funcName))
		})
	}
}

func TestTimingAddsOperationContext(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("locked")).
		Category(CategoryDatabase).
		Timing("list_detections", 1500*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "list_detections", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
}
