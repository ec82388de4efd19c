package datastore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tphakala/birdnet-api2ha/internal/datastore/entities"
)

// Classify inspects the tables present on db. modern requires both the
// detections and labels tables; legacy requires notes; anything else is
// unknown. It only reads catalog metadata.
func Classify(ctx context.Context, db *gorm.DB) (SchemaKind, error) {
	tables, err := db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return SchemaUnknown, err
	}
	return classifyTables(tables), nil
}

// classifyTables applies the layout rules to a table listing. MySQL may
// report names in either case.
func classifyTables(tables []string) SchemaKind {
	has := func(name string) bool {
		return slices.ContainsFunc(tables, func(t string) bool {
			return strings.EqualFold(t, name)
		})
	}

	switch {
	case has(entities.TableDetections) && has(entities.TableLabels):
		return SchemaModern
	case has(entities.TableNotes):
		return SchemaLegacy
	default:
		return SchemaUnknown
	}
}

// schemaCache memoizes classifications per database fingerprint. Concurrent
// misses for the same fingerprint share one classification.
type schemaCache struct {
	entries *cache.Cache
	group   singleflight.Group
}

// newSchemaCache returns nil when ttl disables caching.
func newSchemaCache(ttl time.Duration) *schemaCache {
	if ttl <= 0 {
		return nil
	}
	return &schemaCache{entries: cache.New(ttl, 2*ttl)}
}

// classify returns the cached kind for key, or runs fn once for all
// concurrent callers and caches a successful result. hit reports whether the
// value came from the cache.
func (c *schemaCache) classify(key string, fn func() (SchemaKind, error)) (kind SchemaKind, hit bool, err error) {
	if c == nil {
		kind, err = fn()
		return kind, false, err
	}

	if v, ok := c.entries.Get(key); ok {
		return v.(SchemaKind), true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		kind, err := fn()
		if err != nil {
			return SchemaUnknown, err
		}
		c.entries.SetDefault(key, kind)
		return kind, nil
	})
	if err != nil {
		return SchemaUnknown, false, err
	}
	return v.(SchemaKind), false, nil
}

// fileFingerprint identifies one version of a database file. A replaced or
// rewritten file gets a new fingerprint and is classified again.
func fileFingerprint(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("sqlite:%s:%d:%d", path, size, modTime.UnixNano())
}
