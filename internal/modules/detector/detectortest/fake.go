// Package detectortest provides an in-memory Detector for tests.
package detectortest

import (
	"context"
	"sync/atomic"

	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/detector"
	"github.com/reusedev/detect-hub/internal/modules/model"
)

type Fake struct {
	ID          string
	Threshold   float64
	Predictions []model.Prediction
	Err         error
	Panic       any
	calls       atomic.Int32
}

func (f *Fake) Predict(ctx context.Context, _ []byte) ([]model.Prediction, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Predictions, nil
}

func (f *Fake) SupportedClasses() []string {
	seen := map[string]bool{}
	var ret []string
	for _, p := range f.Predictions {
		if !seen[p.ClassName] {
			seen[p.ClassName] = true
			ret = append(ret, p.ClassName)
		}
	}
	return ret
}

func (f *Fake) ModelInfo() detector.ModelInfo {
	return detector.ModelInfo{
		ID:               f.ID,
		Type:             consts.DetectorTFServing.String(),
		Name:             f.ID,
		DefaultThreshold: f.Threshold,
		ClassCount:       len(f.SupportedClasses()),
	}
}

func (f *Fake) Calls() int {
	return int(f.calls.Load())
}
