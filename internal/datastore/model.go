// model.go defines the schema-independent records returned by the repository
package datastore

// SchemaKind classifies the layout of an upstream database.
type SchemaKind string

const (
	// SchemaModern is the normalized layout: detections referencing labels.
	SchemaModern SchemaKind = "modern"
	// SchemaLegacy is the flat notes table with split date and time columns.
	SchemaLegacy SchemaKind = "legacy"
	// SchemaUnknown means neither layout is present.
	SchemaUnknown SchemaKind = "unknown"
)

// String implements fmt.Stringer.
func (k SchemaKind) String() string {
	return string(k)
}

// Query limits.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Detection is the canonical detection record. Every field is always
// populated; missing data becomes an empty string or zero.
type Detection struct {
	ID             string  `json:"id"`
	Timestamp      string  `json:"timestamp"` // ISO-8601 UTC, second precision
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Confidence     float64 `json:"confidence"`
	AudioPath      string  `json:"audio_path"`
}

// SpeciesCount is one row of a species aggregate.
type SpeciesCount struct {
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
	Count          int64  `json:"count"`
}

// DetectionQuery describes a logical detection listing. Dates are
// "YYYY-MM-DD" strings; malformed dates leave that side unbounded.
type DetectionQuery struct {
	DateStart  string
	DateEnd    string
	NameFilter string
	// AfterID, when set, restricts results to ids strictly greater than it and
	// switches ordering to ascending id.
	AfterID *int64
	Limit   int
}

// StatsQuery describes a species aggregation over a date range.
type StatsQuery struct {
	DateStart string
	DateEnd   string
}

// NormalizeLimit applies the default and the hard cap to a requested limit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
