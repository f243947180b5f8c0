package detector

import (
	"context"
	"fmt"
	"sort"

	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/model"
)

// Detector runs object detection on an encoded image. Predict already applies
// the detector's own confidence_threshold; failures are errs.ErrInference.
type Detector interface {
	Predict(ctx context.Context, image []byte) ([]model.Prediction, error)
	SupportedClasses() []string
	ModelInfo() ModelInfo
}

type ModelInfo struct {
	ID               string  `json:"id"`
	Type             string  `json:"type"`
	Name             string  `json:"name"`
	DefaultThreshold float64 `json:"default_threshold"`
	Endpoint         string  `json:"endpoint,omitempty"`
	ClassCount       int     `json:"class_count"`
}

type Constructor func(id string, c config.Detector) (Detector, error)

// Constructors lists the detector types this build knows how to create.
func Constructors() map[consts.DetectorType]Constructor {
	return map[consts.DetectorType]Constructor{
		consts.DetectorTFServing: NewTFServing,
	}
}

type Registry struct {
	detectors map[string]Detector
	defaultID string
}

func NewRegistry(configs map[string]config.Detector, defaultID string, constructors map[consts.DetectorType]Constructor) (*Registry, error) {
	r := &Registry{detectors: make(map[string]Detector, len(configs)), defaultID: defaultID}
	for id, c := range configs {
		newFn, ok := constructors[consts.DetectorType(c.Type)]
		if !ok {
			return nil, fmt.Errorf("detector %s: unsupported type %q", id, c.Type)
		}
		d, err := newFn(id, c)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", id, err)
		}
		r.detectors[id] = d
	}
	if _, ok := r.detectors[defaultID]; !ok {
		return nil, fmt.Errorf("default detector %q is not configured", defaultID)
	}
	return r, nil
}

// NewStaticRegistry wraps already built detectors.
func NewStaticRegistry(detectors map[string]Detector, defaultID string) *Registry {
	return &Registry{detectors: detectors, defaultID: defaultID}
}

// Get resolves a model id; the empty id means the default model.
func (r *Registry) Get(id string) (string, Detector, error) {
	if id == "" {
		id = r.defaultID
	}
	d, ok := r.detectors[id]
	if !ok {
		return "", nil, errs.Validation("unknown model_id %q", id)
	}
	return id, d, nil
}

func (r *Registry) DefaultID() string {
	return r.defaultID
}

func (r *Registry) List() []ModelInfo {
	ids := make([]string, 0, len(r.detectors))
	for id := range r.detectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ret := make([]ModelInfo, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, r.detectors[id].ModelInfo())
	}
	return ret
}
