package filter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/reusedev/detect-hub/internal/modules/model"
	"github.com/stretchr/testify/require"
)

func TestFilterAndCount(t *testing.T) {
	predictions := []model.Prediction{
		{ClassName: "person", Confidence: 0.95},
		{ClassName: "car", Confidence: 0.3},
		{ClassName: "person", Confidence: 0.5},
		{ClassName: "dog", Confidence: 0.49999},
		{ClassName: "car", Confidence: 0.7},
	}

	t.Run("inclusive boundary", func(t *testing.T) {
		kept, counts := FilterAndCount(predictions, 0.5)
		require.Equal(t, []model.Prediction{predictions[0], predictions[2], predictions[4]}, kept)
		require.Equal(t, map[string]int{"person": 2, "car": 1}, counts)
	})

	t.Run("zero keeps everything", func(t *testing.T) {
		kept, counts := FilterAndCount(predictions, 0)
		require.Len(t, kept, len(predictions))
		require.Equal(t, len(predictions), Total(counts))
	})

	t.Run("one keeps only certain", func(t *testing.T) {
		kept, counts := FilterAndCount(append(predictions, model.Prediction{ClassName: "cat", Confidence: 1}), 1)
		require.Len(t, kept, 1)
		require.Equal(t, map[string]int{"cat": 1}, counts)
	})

	t.Run("empty input", func(t *testing.T) {
		kept, counts := FilterAndCount([]model.Prediction(nil), 0.5)
		require.Empty(t, kept)
		require.Empty(t, counts)
	})
}

func TestFilterAndCountNonFinite(t *testing.T) {
	predictions := []model.Prediction{
		{ClassName: "cat", Confidence: math.NaN()},
		{ClassName: "dog", Confidence: math.Inf(-1)},
		{ClassName: "car", Confidence: math.Inf(1)},
		{ClassName: "cat", Confidence: 0.6},
	}
	kept, counts := FilterAndCount(predictions, 0.5)
	require.Equal(t, []model.Prediction{predictions[2], predictions[3]}, kept)
	require.Equal(t, map[string]int{"car": 1, "cat": 1}, counts)

	kept, _ = FilterAndCount(predictions[:1], 0)
	require.Empty(t, kept)
}

func TestFilterAndCountRowShape(t *testing.T) {
	rows := []model.Detection{
		{ClassName: "cat", Confidence: 0.9},
		{ClassName: "cat", Confidence: 0.7},
	}
	kept, counts := FilterAndCount(rows, 0.8)
	require.Len(t, kept, 1)
	require.Equal(t, map[string]int{"cat": 1}, counts)
}

func TestFilterAndCountProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	classes := []string{"person", "car", "dog", "cat"}
	for i := 0; i < 200; i++ {
		predictions := make([]model.Prediction, r.Intn(30))
		for j := range predictions {
			predictions[j] = model.Prediction{ClassName: classes[r.Intn(len(classes))], Confidence: r.Float64()}
		}
		threshold := r.Float64()

		kept, counts := FilterAndCount(predictions, threshold)
		require.Equal(t, len(kept), Total(counts))

		expected := 0
		for _, p := range predictions {
			if p.Confidence >= threshold {
				require.Equal(t, p, kept[expected])
				expected++
			}
		}
		require.Equal(t, expected, len(kept))
	}
}
