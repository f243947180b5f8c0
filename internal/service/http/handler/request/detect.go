package request

import (
	"fmt"
	"math"
	"mime/multipart"
)

type Detect struct {
	Image     *multipart.FileHeader `form:"image"` // preferred over url
	URL       string                `form:"url"`
	Threshold *float64              `form:"threshold"`
	ModelID   string                `form:"model_id"`
}

func (d *Detect) Valid() error {
	if d.Image == nil && d.URL == "" {
		return fmt.Errorf("must fill image or url")
	}
	if d.Threshold == nil {
		return fmt.Errorf("threshold is required")
	}
	if t := *d.Threshold; math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0")
	}
	return nil
}
