package detection

import (
	"time"

	"github.com/reusedev/detect-hub/internal/modules/detector"
	"github.com/reusedev/detect-hub/internal/modules/model"
)

// Upload is one image as received from a caller.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

type DetectRequest struct {
	Upload
	Threshold float64
	ModelID   string
}

// Summary is the outcome of one detection pass over a session.
type Summary struct {
	SessionID        string                  `json:"session_id"`
	ModelID          string                  `json:"model_id"`
	Results          []model.DetectionResult `json:"results"`
	Counts           map[string]int          `json:"counts"`
	TotalCount       int                     `json:"total_count"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
	ThresholdApplied float64                 `json:"threshold_applied"`
	ImageDimensions  [2]int                  `json:"image_dimensions"`
}

type ImageInfo struct {
	StorageType      string `json:"storage_type"`
	ImagePath        string `json:"image_path"`
	OriginalFilename string `json:"original_filename,omitempty"`
	MimeType         string `json:"mime_type"`
	FileSizeBytes    int64  `json:"file_size_bytes,omitempty"`
	ThumbnailPath    string `json:"thumbnail_path,omitempty"`
}

// SessionSummary is the read model of a stored session.
type SessionSummary struct {
	ID                   string                  `json:"id" copier:"Id"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
	ExpiredAt            *time.Time              `json:"expired_at,omitempty" copier:"-"`
	Threshold            float64                 `json:"threshold"`
	ModelID              string                  `json:"model_id" copier:"ModelId"`
	ImageHash            string                  `json:"image_hash"`
	ImageDimensions      [2]int                  `json:"image_dimensions"`
	TotalObjectsDetected int                     `json:"total_objects_detected"`
	ProcessingTimeMs     *int64                  `json:"processing_time_ms" copier:"-"`
	Counts               map[string]int          `json:"counts" copier:"-"`
	Detections           []model.DetectionResult `json:"detections" copier:"-"`
	Image                *ImageInfo              `json:"image,omitempty" copier:"-"`
}

type ModelList struct {
	Models       map[string]detector.ModelInfo `json:"models"`
	DefaultModel string                        `json:"default_model"`
}
