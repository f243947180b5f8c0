package response

import (
	"github.com/reusedev/detect-hub/internal/modules/model"
)

type Detect struct {
	SessionID        string                  `json:"session_id"`
	ModelID          string                  `json:"model_id"`
	Results          []model.DetectionResult `json:"results"`
	Counts           map[string]int          `json:"counts"`
	TotalCount       int                     `json:"total_count"`
	ThresholdApplied float64                 `json:"threshold_applied"`
	ImageDimensions  [2]int                  `json:"image_dimensions"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
}

type Detections struct {
	SessionID  string                  `json:"session_id"`
	Detections []model.DetectionResult `json:"detections"`
}

type Counts struct {
	SessionID string         `json:"session_id,omitempty"`
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
}
