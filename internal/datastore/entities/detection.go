package entities

// Detection is a row of the normalized 'detections' table. DetectedAt holds
// Unix epoch seconds; the species lives in the referenced label.
type Detection struct {
	ID         uint    `gorm:"primaryKey"`
	ModelID    uint    `gorm:"not null;default:1"`
	LabelID    uint    `gorm:"not null;index:idx_detection_label_date"`
	DetectedAt int64   `gorm:"not null;index;index:idx_detection_label_date"`
	Confidence float64 `gorm:"not null"`
	ClipName   *string `gorm:"type:varchar(500)"`

	Label *Label `gorm:"foreignKey:LabelID"`
}

// TableName returns the table name for GORM.
func (Detection) TableName() string {
	return "detections"
}

// Label is a classification label. For species ScientificName holds the
// binomial name; there is no common name column.
type Label struct {
	ID             uint   `gorm:"primaryKey"`
	ScientificName string `gorm:"size:200;not null;uniqueIndex:idx_label_identity"`
	ModelID        uint   `gorm:"not null;default:1;uniqueIndex:idx_label_identity"`
}

// TableName returns the table name for GORM.
func (Label) TableName() string {
	return "labels"
}

// Table names used for schema classification.
const (
	TableDetections = "detections"
	TableLabels     = "labels"
	TableNotes      = "notes"
)
