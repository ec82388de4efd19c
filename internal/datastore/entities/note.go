// Package entities holds GORM models of the two BirdNET-Go database layouts.
// The service only reads these tables; the models exist so fixtures can be
// created with AutoMigrate and so table names live in one place.
package entities

// Note is a row of the legacy flat 'notes' table. Date and time are stored
// as separate text columns ("2006-01-02", "15:04:05").
type Note struct {
	ID             uint `gorm:"primaryKey"`
	SourceNode     string
	Date           string `gorm:"index:idx_notes_date"`
	Time           string `gorm:"index:idx_notes_time"`
	ScientificName string `gorm:"index:idx_notes_sciname"`
	CommonName     string `gorm:"index:idx_notes_comname"`
	Confidence     float64
	Latitude       float64
	Longitude      float64
	Threshold      float64
	Sensitivity    float64
	ClipName       string
}

// TableName returns the table name for GORM.
func (Note) TableName() string {
	return "notes"
}
