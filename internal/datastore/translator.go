package datastore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/birdnet-api2ha/internal/datastore/entities"
)

// likeEscape is the escape character used in LIKE patterns; it is not
// special in either SQLite or MySQL string literals.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(
	likeEscape, likeEscape+likeEscape,
	"%", likeEscape+"%",
	"_", likeEscape+"_",
)

// containsPattern builds a case-insensitive substring LIKE pattern. Matching
// columns must be wrapped in LOWER(), which is Unicode-aware on both
// dialects (see sqliteDriverName).
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// translator is implemented once per supported SchemaKind. The set is
// closed: translatorFor is the only constructor.
type translator interface {
	listDetections(ctx context.Context, db *gorm.DB, q *DetectionQuery, loc *time.Location) ([]Detection, error)
	aggregateStats(ctx context.Context, db *gorm.DB, q *StatsQuery, loc *time.Location) ([]SpeciesCount, error)
	maxDetectionID(ctx context.Context, db *gorm.DB) (int64, error)
	countDetections(ctx context.Context, db *gorm.DB) (int64, error)
	clipName(ctx context.Context, db *gorm.DB, id int64) (string, bool, error)
}

// translatorFor selects the dialect for kind, or false for SchemaUnknown.
func translatorFor(kind SchemaKind) (translator, bool) {
	switch kind {
	case SchemaModern:
		return modernTranslator{}, true
	case SchemaLegacy:
		return legacyTranslator{}, true
	default:
		return nil, false
	}
}

// modernTranslator reads detections joined to labels.
type modernTranslator struct{}

type modernRow struct {
	ID             int64
	DetectedAt     sql.NullInt64
	Confidence     sql.NullFloat64
	ClipName       sql.NullString
	ScientificName sql.NullString
}

type speciesRow struct {
	ScientificName sql.NullString
	CommonName     sql.NullString
	Total          int64
}

func (modernTranslator) filtered(ctx context.Context, db *gorm.DB, start, end string, loc *time.Location) *gorm.DB {
	tx := db.WithContext(ctx).
		Table(entities.TableDetections + " AS d").
		Joins("JOIN " + entities.TableLabels + " AS l ON l.id = d.label_id")

	r := parseDateRange(start, end, loc)
	if r.start != nil {
		tx = tx.Where("d.detected_at >= ?", r.start.Unix())
	}
	if r.end != nil {
		tx = tx.Where("d.detected_at <= ?", r.end.Unix())
	}
	return tx
}

func (t modernTranslator) listDetections(ctx context.Context, db *gorm.DB, q *DetectionQuery, loc *time.Location) ([]Detection, error) {
	tx := t.filtered(ctx, db, q.DateStart, q.DateEnd, loc).
		Select("d.id, d.detected_at, d.confidence, d.clip_name, l.scientific_name")

	if q.NameFilter != "" {
		tx = tx.Where("LOWER(l.scientific_name) LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(q.NameFilter))
	}

	if q.AfterID != nil {
		tx = tx.Where("d.id > ?", *q.AfterID).Order("d.id ASC")
	} else {
		tx = tx.Order("d.detected_at DESC").Order("d.id DESC")
	}

	var rows []modernRow
	if err := tx.Limit(NormalizeLimit(q.Limit)).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Detection, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		name := r.ScientificName.String
		out = append(out, Detection{
			ID:             strconv.FormatInt(r.ID, 10),
			Timestamp:      modernTimestamp(r.DetectedAt),
			CommonName:     name,
			ScientificName: name,
			Confidence:     r.Confidence.Float64,
			AudioPath:      r.ClipName.String,
		})
	}
	return out, nil
}

// modernTimestamp renders a NULL detected_at as an empty string.
func modernTimestamp(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return epochToTimestamp(v.Int64)
}

func (t modernTranslator) aggregateStats(ctx context.Context, db *gorm.DB, q *StatsQuery, loc *time.Location) ([]SpeciesCount, error) {
	var rows []speciesRow
	err := t.filtered(ctx, db, q.DateStart, q.DateEnd, loc).
		Select("l.scientific_name AS scientific_name, COUNT(*) AS total").
		Group("l.scientific_name").
		Order("total DESC").
		Order("l.scientific_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]SpeciesCount, 0, len(rows))
	for i := range rows {
		name := rows[i].ScientificName.String
		out = append(out, SpeciesCount{CommonName: name, ScientificName: name, Count: rows[i].Total})
	}
	return out, nil
}

func (modernTranslator) maxDetectionID(ctx context.Context, db *gorm.DB) (int64, error) {
	return maxID(ctx, db, entities.TableDetections)
}

func (modernTranslator) countDetections(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Table(entities.TableDetections).Count(&n).Error
	return n, err
}

func (modernTranslator) clipName(ctx context.Context, db *gorm.DB, id int64) (string, bool, error) {
	return lookupClip(ctx, db, entities.TableDetections, id)
}

// legacyTranslator reads the flat notes table.
type legacyTranslator struct{}

type legacyRow struct {
	ID             int64
	Date           sql.NullString
	Time           sql.NullString
	ScientificName sql.NullString
	CommonName     sql.NullString
	Confidence     sql.NullFloat64
	ClipName       sql.NullString
}

// filtered compares the text date column lexicographically, which orders
// zero-padded ISO dates correctly.
func (legacyTranslator) filtered(ctx context.Context, db *gorm.DB, start, end string, loc *time.Location) *gorm.DB {
	tx := db.WithContext(ctx).Table(entities.TableNotes)

	r := parseDateRange(start, end, loc)
	if r.start != nil {
		tx = tx.Where("date >= ?", r.start.Format(dateLayout))
	}
	if r.end != nil {
		tx = tx.Where("date <= ?", r.end.Format(dateLayout))
	}
	return tx
}

func (t legacyTranslator) listDetections(ctx context.Context, db *gorm.DB, q *DetectionQuery, loc *time.Location) ([]Detection, error) {
	tx := t.filtered(ctx, db, q.DateStart, q.DateEnd, loc).
		Select("id, date, time, scientific_name, common_name, confidence, clip_name")

	if q.NameFilter != "" {
		pattern := containsPattern(q.NameFilter)
		tx = tx.Where("(LOWER(common_name) LIKE ? ESCAPE '"+likeEscape+"' OR LOWER(scientific_name) LIKE ? ESCAPE '"+likeEscape+"')",
			pattern, pattern)
	}

	if q.AfterID != nil {
		tx = tx.Where("id > ?", *q.AfterID).Order("id ASC")
	} else {
		tx = tx.Order("date DESC").Order("time DESC").Order("id DESC")
	}

	var rows []legacyRow
	if err := tx.Limit(NormalizeLimit(q.Limit)).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Detection, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, Detection{
			ID:             strconv.FormatInt(r.ID, 10),
			Timestamp:      legacyTimestamp(r.Date.String, r.Time.String),
			CommonName:     commonNameOr(r.CommonName.String, r.ScientificName.String),
			ScientificName: r.ScientificName.String,
			Confidence:     r.Confidence.Float64,
			AudioPath:      r.ClipName.String,
		})
	}
	return out, nil
}

func (t legacyTranslator) aggregateStats(ctx context.Context, db *gorm.DB, q *StatsQuery, loc *time.Location) ([]SpeciesCount, error) {
	var rows []speciesRow
	err := t.filtered(ctx, db, q.DateStart, q.DateEnd, loc).
		Select("scientific_name, MAX(common_name) AS common_name, COUNT(*) AS total").
		Group("scientific_name").
		Order("total DESC").
		Order("scientific_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]SpeciesCount, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, SpeciesCount{
			CommonName:     commonNameOr(r.CommonName.String, r.ScientificName.String),
			ScientificName: r.ScientificName.String,
			Count:          r.Total,
		})
	}
	return out, nil
}

func (legacyTranslator) maxDetectionID(ctx context.Context, db *gorm.DB) (int64, error) {
	return maxID(ctx, db, entities.TableNotes)
}

func (legacyTranslator) countDetections(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Table(entities.TableNotes).Count(&n).Error
	return n, err
}

func (legacyTranslator) clipName(ctx context.Context, db *gorm.DB, id int64) (string, bool, error) {
	return lookupClip(ctx, db, entities.TableNotes, id)
}

func commonNameOr(common, scientific string) string {
	if common != "" {
		return common
	}
	return scientific
}

func maxID(ctx context.Context, db *gorm.DB, table string) (int64, error) {
	var id int64
	err := db.WithContext(ctx).Table(table).Select("COALESCE(MAX(id), 0)").Scan(&id).Error
	return id, err
}

type clipRow struct {
	ClipName sql.NullString
}

func lookupClip(ctx context.Context, db *gorm.DB, table string, id int64) (string, bool, error) {
	var rows []clipRow
	err := db.WithContext(ctx).Table(table).
		Select("clip_name").
		Where("id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].ClipName.String, true, nil
}
