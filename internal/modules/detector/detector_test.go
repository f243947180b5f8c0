package detector

import (
	"context"
	"testing"

	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
	"github.com/reusedev/detect-hub/internal/modules/errs"
	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/stretchr/testify/require"
)

type stub struct{ id string }

func (s stub) Predict(context.Context, []byte) ([]model.Prediction, error) { return nil, nil }
func (s stub) SupportedClasses() []string                                   { return nil }
func (s stub) ModelInfo() ModelInfo                                         { return ModelInfo{ID: s.id} }

func stubConstructors() map[consts.DetectorType]Constructor {
	return map[consts.DetectorType]Constructor{
		consts.DetectorTFServing: func(id string, _ config.Detector) (Detector, error) { return stub{id: id}, nil },
	}
}

func TestRegistry(t *testing.T) {
	configs := map[string]config.Detector{
		"ssd":  {Type: consts.DetectorTFServing.String()},
		"yolo": {Type: consts.DetectorTFServing.String()},
	}
	r, err := NewRegistry(configs, "ssd", stubConstructors())
	require.NoError(t, err)
	require.Equal(t, "ssd", r.DefaultID())

	id, d, err := r.Get("")
	require.NoError(t, err)
	require.Equal(t, "ssd", id)
	require.Equal(t, "ssd", d.ModelInfo().ID)

	id, _, err = r.Get("yolo")
	require.NoError(t, err)
	require.Equal(t, "yolo", id)

	_, _, err = r.Get("rcnn")
	require.ErrorIs(t, err, errs.ErrValidation)

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "ssd", list[0].ID)
	require.Equal(t, "yolo", list[1].ID)
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	_, err := NewRegistry(map[string]config.Detector{"x": {Type: "onnx"}}, "x", stubConstructors())
	require.Error(t, err)

	_, err = NewRegistry(map[string]config.Detector{"x": {Type: consts.DetectorTFServing.String()}}, "y", stubConstructors())
	require.Error(t, err)
}

func TestConstructorsCoverConfiguredTypes(t *testing.T) {
	_, ok := Constructors()[consts.DetectorTFServing]
	require.True(t, ok)
}
