package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// oneHotTensor builds a [maxLen, vocabSize] tensor with the given symbol
// indices one-hot encoded from position 0; remaining rows stay zero.
func oneHotTensor(maxLen, vocabSize int, indices []int) *mat.Dense {
	tensor := mat.NewDense(maxLen, vocabSize, nil)
	for pos, idx := range indices {
		tensor.Set(pos, idx, 1)
	}
	return tensor
}

func TestPredictShapeAndNormalization(t *testing.T) {
	net := NewLSTMNet(7, 5)
	x := oneHotTensor(5, 7, []int{1, 3, 4, 2, 0})
	probs := net.Predict(x)
	rows, cols := probs.Dims()
	require.Equal(t, 5, rows)
	require.Equal(t, 7, cols)
	for pos := 0; pos < rows; pos++ {
		sum := 0.0
		for idx := 0; idx < cols; idx++ {
			p := probs.At(pos, idx)
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "position %d", pos)
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	net := NewLSTMNet(5, 4)
	x := oneHotTensor(4, 5, []int{1, 3, 2, 0})
	first := net.Predict(x)
	second := net.Predict(x)
	assert.True(t, mat.Equal(first, second))
}

func TestPredictShapeMismatchPanics(t *testing.T) {
	net := NewLSTMNet(5, 4)
	assert.Panics(t, func() {
		net.Predict(mat.NewDense(4, 6, nil))
	})
}

func TestFitReturnsMetricsAndUpdatesWeights(t *testing.T) {
	net := NewLSTMNet(5, 4)
	features := []*mat.Dense{
		oneHotTensor(4, 5, []int{1, 3, 2, 0}),
		oneHotTensor(4, 5, []int{1, 4, 2, 0}),
	}
	targets := []*mat.Dense{
		oneHotTensor(4, 5, []int{3, 2, 0, 0}),
		oneHotTensor(4, 5, []int{4, 2, 0, 0}),
	}
	probe := oneHotTensor(4, 5, []int{1, 3, 2, 0})
	before := net.Predict(probe)
	metrics, err := net.Fit(features, targets, 4)
	require.NoError(t, err)
	assert.Greater(t, metrics.Loss, 0.0)
	assert.GreaterOrEqual(t, metrics.Accuracy, 0.0)
	assert.LessOrEqual(t, metrics.Accuracy, 1.0)
	after := net.Predict(probe)
	assert.False(t, mat.Equal(before, after),
		"a gradient step should change the predictions")
}

func TestFitValidation(t *testing.T) {
	net := NewLSTMNet(5, 4)
	x := oneHotTensor(4, 5, []int{1, 3, 2, 0})

	_, err := net.Fit(nil, nil, 4)
	assert.Error(t, err)

	_, err = net.Fit([]*mat.Dense{x, x}, []*mat.Dense{x}, 4)
	assert.Error(t, err)

	bad := mat.NewDense(4, 6, nil)
	_, err = net.Fit([]*mat.Dense{bad}, []*mat.Dense{x}, 4)
	assert.Error(t, err)
}

func TestFitAllMaskedFails(t *testing.T) {
	net := NewLSTMNet(5, 4)
	empty := mat.NewDense(4, 5, nil)
	_, err := net.Fit([]*mat.Dense{empty}, []*mat.Dense{empty}, 4)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights")
	net := NewLSTMNet(5, 4)
	require.NoError(t, net.SaveWeights(path))

	restored := NewLSTMNet(5, 4)
	require.NoError(t, restored.LoadWeights(path))
	x := oneHotTensor(4, 5, []int{1, 3, 2, 0})
	assert.True(t, mat.Equal(net.Predict(x), restored.Predict(x)),
		"byte-identical weights must give identical predictions")
}

func TestLoadWeightsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights")
	require.NoError(t, NewLSTMNet(5, 4).SaveWeights(path))
	err := NewLSTMNet(6, 4).LoadWeights(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "vocab")
}

func TestLoadWeightsRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a weights file"), 0644))
	err := NewLSTMNet(5, 4).LoadWeights(path)
	require.Error(t, err)
}

func TestSummaryCountsParameters(t *testing.T) {
	net := NewLSTMNet(5, 4)
	summary := net.Summary()
	assert.Contains(t, summary, "LSTM 1")
	assert.Contains(t, summary, "LSTM 4")
	assert.Contains(t, summary, "Dropout 0.2")
	assert.Contains(t, summary, "Total params")
}
