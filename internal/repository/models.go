// Package repository persists dump summaries so runs can be compared over time.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/oatdump/pkg/model"
)

// DumpRecord represents the dump_record table.
type DumpRecord struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ArtifactPath string    `gorm:"column:artifact_path;type:varchar(1024);index"`
	Kind         string    `gorm:"column:kind;type:varchar(16)"`
	Checksum     int64     `gorm:"column:checksum"`
	OatLocation  string    `gorm:"column:oat_location;type:varchar(1024)"`
	OatFound     bool      `gorm:"column:oat_found"`
	FileBytes    int64     `gorm:"column:file_bytes"`
	ObjectBytes  int64     `gorm:"column:object_bytes"`
	ObjectCount  int64     `gorm:"column:object_count"`
	Classes      int64     `gorm:"column:classes"`
	Stats        JSONField `gorm:"column:stats;type:json"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`

	Descriptors []DescriptorRow `gorm:"foreignKey:RecordID"`
}

// TableName returns the table name for DumpRecord.
func (DumpRecord) TableName() string {
	return "dump_record"
}

// DescriptorRow represents the dump_descriptor table: one row per class descriptor of an image dump.
type DescriptorRow struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RecordID   int64  `gorm:"column:record_id;index"`
	Descriptor string `gorm:"column:descriptor;type:varchar(512)"`
	Bytes      int64  `gorm:"column:bytes"`
	Count      int64  `gorm:"column:count"`
}

// TableName returns the table name for DescriptorRow.
func (DescriptorRow) TableName() string {
	return "dump_descriptor"
}

// storedStats is the JSON payload of DumpRecord.Stats. Descriptor rows live in their own table.
type storedStats struct {
	Image *model.ImageStats `json:"image,omitempty"`
	Oat   *model.OatStats   `json:"oat,omitempty"`
}

// FromSummary converts a dump summary into a record and its descriptor rows.
func FromSummary(s *model.DumpSummary) (*DumpRecord, error) {
	rec := &DumpRecord{
		ArtifactPath: s.ArtifactPath,
		Kind:         string(s.Kind),
		Checksum:     int64(s.Checksum),
		OatLocation:  s.OatLocation,
		OatFound:     s.OatFound,
		CreatedAt:    s.CreatedAt,
	}

	stats := storedStats{Oat: s.Oat}
	if s.Image != nil {
		img := *s.Image
		img.Descriptors = nil
		stats.Image = &img

		rec.FileBytes = s.Image.FileBytes
		rec.ObjectBytes = s.Image.ObjectBytes
		rec.ObjectCount = s.Image.ObjectCount
		for _, d := range s.Image.Descriptors {
			rec.Descriptors = append(rec.Descriptors, DescriptorRow{
				Descriptor: d.Descriptor,
				Bytes:      d.Bytes,
				Count:      d.Count,
			})
		}
	}
	if s.Oat != nil {
		rec.Classes = s.Oat.Classes
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	rec.Stats = raw
	return rec, nil
}

// ToModel converts DumpRecord back to model.DumpSummary.
func (r *DumpRecord) ToModel() (*model.DumpSummary, error) {
	s := &model.DumpSummary{
		ArtifactPath: r.ArtifactPath,
		Kind:         model.ArtifactKind(r.Kind),
		Checksum:     uint32(r.Checksum),
		OatLocation:  r.OatLocation,
		OatFound:     r.OatFound,
		CreatedAt:    r.CreatedAt,
	}

	var stats storedStats
	if r.Stats != nil {
		if err := json.Unmarshal(r.Stats, &stats); err != nil {
			return nil, err
		}
	}
	s.Oat = stats.Oat
	s.Image = stats.Image

	if s.Image != nil {
		s.Image.Descriptors = make([]model.DescriptorStat, 0, len(r.Descriptors))
		for _, d := range r.Descriptors {
			s.Image.Descriptors = append(s.Image.Descriptors, model.DescriptorStat{
				Descriptor: d.Descriptor,
				Bytes:      d.Bytes,
				Count:      d.Count,
			})
		}
		s.Image.SortDescriptors()
	}
	return s, nil
}

// JSONField is a custom type for handling JSON columns.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}
