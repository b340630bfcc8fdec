package char_rnn

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/brodriguez/char_rnn/model"
	"github.com/brodriguez/char_rnn/resources"
)

// recordingNet counts training-loop interactions so cadence and error
// propagation can be asserted without real training.
type recordingNet struct {
	vocabSize  int
	maxLen     int
	fitCalls   int
	batchSizes []int
	batchLens  []int
	savedPaths []string
	fitErr     error
}

func (n *recordingNet) Fit(features, targets []*mat.Dense,
	batchSize int) (model.Metrics, error) {
	n.fitCalls++
	n.batchSizes = append(n.batchSizes, batchSize)
	n.batchLens = append(n.batchLens, len(features))
	if n.fitErr != nil {
		return model.Metrics{}, n.fitErr
	}
	return model.Metrics{Loss: 1.5, Accuracy: 0.5}, nil
}

func (n *recordingNet) Predict(x *mat.Dense) *mat.Dense {
	return mat.NewDense(n.maxLen, n.vocabSize, nil)
}

func (n *recordingNet) SaveWeights(path string) error {
	n.savedPaths = append(n.savedPaths, path)
	return nil
}

func (n *recordingNet) LoadWeights(path string) error { return nil }

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	docDir := filepath.Join(dir, "Documents")
	require.NoError(t, os.MkdirAll(docDir, 0755))
	dataset := `[{"text": "hi"}, {"text": "yo"}]`
	require.NoError(t, os.WriteFile(
		filepath.Join(docDir, "alice.json"), []byte(dataset), 0644))
}

func newTestSession(t *testing.T, net *recordingNet,
	testLog *log.Logger) *Session {
	t.Helper()
	dir := t.TempDir()
	writeDataset(t, dir)
	session, err := NewSession("alice", SessionConfig{
		DataDir:    dir,
		WeightsDir: filepath.Join(dir, "Weights"),
		Log:        log.New(&bytes.Buffer{}, "", 0),
		TestLog:    testLog,
		NewNet: func(vocabSize, maxLen int) model.Net {
			net.vocabSize = vocabSize
			net.maxLen = maxLen
			return net
		},
	})
	require.NoError(t, err)
	return session
}

func TestSessionBuildsVocabularyFromCorpus(t *testing.T) {
	net := &recordingNet{}
	session := newTestSession(t, net, log.New(&bytes.Buffer{}, "", 0))
	assert.Equal(t, 7, session.Vocab.Size())
	assert.Equal(t, 5, session.Vocab.MaxStringLength())
	assert.Equal(t, 7, net.vocabSize)
	assert.Equal(t, 5, net.maxLen)
}

func TestTrainCadence(t *testing.T) {
	var testOut bytes.Buffer
	net := &recordingNet{}
	session := newTestSession(t, net, log.New(&testOut, "", 0))
	require.NoError(t, session.Train(11))

	assert.Equal(t, 11, net.fitCalls)
	// Both records in every pass, batch size follows maxStringLength.
	for call := 0; call < net.fitCalls; call++ {
		assert.Equal(t, 2, net.batchLens[call])
		assert.Equal(t, 5, net.batchSizes[call])
	}
	// Sampled at epochs 0 and 10, checkpointed at epoch 0 only.
	intLines := strings.Count(testOut.String(), "Full Generated Int String")
	charLines := strings.Count(testOut.String(), "Full Generated Char String")
	assert.Equal(t, 2, intLines)
	assert.Equal(t, 2, charLines)
	require.Len(t, net.savedPaths, 1)
	name := filepath.Base(net.savedPaths[0])
	assert.True(t, strings.HasPrefix(name, "4LSTM_Size7_atEpoch0_"),
		"checkpoint name %s", name)
}

func TestTrainPropagatesFitError(t *testing.T) {
	net := &recordingNet{fitErr: errors.New("numeric blowup")}
	session := newTestSession(t, net, log.New(&bytes.Buffer{}, "", 0))
	err := session.Train(3)
	require.Error(t, err)
	assert.ErrorContains(t, err, "numeric blowup")
	// No retry: the first failure ends the loop.
	assert.Equal(t, 1, net.fitCalls)
}

func TestNewSessionUnknownDataSource(t *testing.T) {
	_, err := NewSession("nonsense", SessionConfig{
		DataDir: t.TempDir(),
		Log:     log.New(&bytes.Buffer{}, "", 0),
	})
	require.Error(t, err)
	var dsErr *resources.DataSourceError
	assert.True(t, errors.As(err, &dsErr))
}

func TestNewSessionMissingDatasetFile(t *testing.T) {
	_, err := NewSession("alice", SessionConfig{
		DataDir: t.TempDir(),
		Log:     log.New(&bytes.Buffer{}, "", 0),
	})
	require.Error(t, err)
	var dsErr *resources.DataSourceError
	assert.True(t, errors.As(err, &dsErr))
}

func TestSessionPruneKnob(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	session, err := NewSession("alice", SessionConfig{
		DataDir:    dir,
		PruneBelow: 2,
		Log:        log.New(&bytes.Buffer{}, "", 0),
		TestLog:    log.New(&bytes.Buffer{}, "", 0),
		NewNet: func(vocabSize, maxLen int) model.Net {
			return &recordingNet{vocabSize: vocabSize, maxLen: maxLen}
		},
	})
	require.NoError(t, err)
	// 'h', 'i', 'o', 'y' each occur once; sentinels survive.
	assert.Equal(t, 3, session.Vocab.Size())
}
