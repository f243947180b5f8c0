package model

import (
	"database/sql"
	"time"

	"github.com/reusedev/detect-hub/internal/modules/errs"
	"gorm.io/gorm"
)

// DetectionSession is the aggregate root: one uploaded image analysed with one
// threshold by one model. Detections, counts and the image row hang off it.
type DetectionSession struct {
	Id                   string           `json:"id" gorm:"column:id;type:char(36);primaryKey"`
	CreatedAt            time.Time        `json:"created_at" gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt            time.Time        `json:"updated_at" gorm:"column:updated_at;type:datetime;not null"`
	ExpiredAt            gorm.DeletedAt   `json:"expired_at" gorm:"column:expired_at;type:datetime;index"`
	Threshold            float64          `json:"threshold" gorm:"column:threshold;type:double;not null;check:threshold_range_check,threshold >= 0.0 AND threshold <= 1.0"`
	ImageHash            string           `json:"image_hash" gorm:"column:image_hash;type:varchar(64);not null;index"`
	ImageWidth           int              `json:"image_width" gorm:"column:image_width;type:int;not null;default:0"`
	ImageHeight          int              `json:"image_height" gorm:"column:image_height;type:int;not null;default:0"`
	ModelId              string           `json:"model_id" gorm:"column:model_id;type:varchar(50);not null"`
	TotalObjectsDetected int              `json:"total_objects_detected" gorm:"column:total_objects_detected;type:int;not null;default:0"`
	ProcessingTimeMs     sql.NullInt64    `json:"processing_time_ms" gorm:"column:processing_time_ms;type:int"`
	Detections           []Detection      `json:"-" gorm:"foreignKey:SessionId;references:Id;constraint:OnDelete:CASCADE"`
	DetectionCounts      []DetectionCount `json:"-" gorm:"foreignKey:SessionId;references:Id;constraint:OnDelete:CASCADE"`
	Image                *DetectionImage  `json:"-" gorm:"foreignKey:SessionId;references:Id;constraint:OnDelete:CASCADE"`
}

func (DetectionSession) TableName() string {
	return "detection_sessions"
}

func (DetectionSession) KeyColumn() string {
	return "id"
}

func (s *DetectionSession) BeforeSave(*gorm.DB) error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return errs.Validation("threshold must be between 0.0 and 1.0, got %v", s.Threshold)
	}
	if s.ImageWidth < 0 || s.ImageHeight < 0 {
		return errs.Validation("image dimensions must not be negative")
	}
	if s.TotalObjectsDetected < 0 {
		return errs.Validation("total_objects_detected must not be negative")
	}
	return nil
}

type Detection struct {
	Id         int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CreatedAt  time.Time      `json:"created_at" gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"column:updated_at;type:datetime;not null"`
	ExpiredAt  gorm.DeletedAt `json:"expired_at" gorm:"column:expired_at;type:datetime;index"`
	SessionId  string         `json:"session_id" gorm:"column:session_id;type:char(36);not null;index"`
	ClassName  string         `json:"class_name" gorm:"column:class_name;type:varchar(100);not null"`
	Confidence float64        `json:"confidence" gorm:"column:confidence;type:double;not null;check:confidence_range_check,confidence >= 0.0 AND confidence <= 1.0"`
	BboxX1     float64        `json:"bbox_x1" gorm:"column:bbox_x1;type:double;not null"`
	BboxY1     float64        `json:"bbox_y1" gorm:"column:bbox_y1;type:double;not null"`
	BboxX2     float64        `json:"bbox_x2" gorm:"column:bbox_x2;type:double;not null;check:bbox_x_check,bbox_x1 < bbox_x2"`
	BboxY2     float64        `json:"bbox_y2" gorm:"column:bbox_y2;type:double;not null;check:bbox_y_check,bbox_y1 < bbox_y2"`
}

func (Detection) TableName() string {
	return "detections"
}

func (Detection) KeyColumn() string {
	return "id"
}

func (d Detection) GetClassName() string   { return d.ClassName }
func (d Detection) GetConfidence() float64 { return d.Confidence }

func (d Detection) BBox() BBox {
	return BBox{X1: d.BboxX1, Y1: d.BboxY1, X2: d.BboxX2, Y2: d.BboxY2}
}

func (d *Detection) BeforeSave(*gorm.DB) error {
	if !(d.Confidence >= 0 && d.Confidence <= 1) {
		return errs.Validation("confidence must be between 0.0 and 1.0, got %v", d.Confidence)
	}
	if !d.BBox().Valid() {
		return errs.Validation("invalid bbox %v for class %s", d.BBox().Slice(), d.ClassName)
	}
	return nil
}

// DetectionCount is the per class tally of a session, unique on (session_id, class_name).
type DetectionCount struct {
	Id        int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;type:datetime;not null"`
	ExpiredAt gorm.DeletedAt `json:"expired_at" gorm:"column:expired_at;type:datetime;index"`
	SessionId string         `json:"session_id" gorm:"column:session_id;type:char(36);not null;uniqueIndex:unique_class_per_session"`
	ClassName string         `json:"class_name" gorm:"column:class_name;type:varchar(100);not null;uniqueIndex:unique_class_per_session"`
	Count     int            `json:"count" gorm:"column:count;type:int;not null;check:count_positive_check,count > 0"`
}

func (DetectionCount) TableName() string {
	return "detection_counts"
}

func (DetectionCount) KeyColumn() string {
	return "id"
}

func (c *DetectionCount) BeforeSave(*gorm.DB) error {
	if c.Count <= 0 {
		return errs.Validation("count for class %s must be positive, got %d", c.ClassName, c.Count)
	}
	return nil
}

type DetectionImage struct {
	SessionId        string          `json:"session_id" gorm:"column:session_id;type:char(36);primaryKey"`
	CreatedAt        time.Time       `json:"created_at" gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"column:updated_at;type:datetime;not null"`
	ExpiredAt        gorm.DeletedAt  `json:"expired_at" gorm:"column:expired_at;type:datetime;index"`
	StorageType      string          `json:"storage_type" gorm:"column:storage_type;type:varchar(20);not null"`
	ImagePath        string          `json:"image_path" gorm:"column:image_path;type:varchar(255);not null"`
	OriginalFilename sql.NullString  `json:"original_filename" gorm:"column:original_filename;type:varchar(255)"`
	MimeType         string          `json:"mime_type" gorm:"column:mime_type;type:varchar(100);not null"`
	FileSizeBytes    sql.NullInt64   `json:"file_size_bytes" gorm:"column:file_size_bytes;type:int"`
	StorageMetadata  StorageMetadata `json:"storage_metadata" gorm:"column:storage_metadata;type:json"`
}

func (DetectionImage) TableName() string {
	return "detection_images"
}

func (DetectionImage) KeyColumn() string {
	return "session_id"
}

// Tables in dependency order, parents first.
func Tables() []any {
	return []any{&DetectionSession{}, &Detection{}, &DetectionCount{}, &DetectionImage{}}
}
