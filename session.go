package char_rnn

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/brodriguez/char_rnn/model"
	"github.com/brodriguez/char_rnn/resources"
)

// Training-loop cadences: sampled text every SAMPLE_EVERY epochs, weight
// checkpoints every CHECKPOINT_EVERY epochs.
const (
	SAMPLE_EVERY     = 10
	CHECKPOINT_EVERY = 50
)

// SessionConfig carries the optional knobs of a session. Zero values
// select the defaults; both loggers are owned by the session rather than
// shared process-global state.
type SessionConfig struct {
	DataDir    string
	WeightsDir string
	// PruneBelow drops vocabulary symbols occurring fewer than this many
	// times in the corpus. Zero disables pruning, the default.
	PruneBelow int
	Log        *log.Logger
	TestLog    *log.Logger
	// NewNet overrides network construction, letting tests drive the
	// training loop and sampler against a mock.
	NewNet func(vocabSize, maxLen int) model.Net
}

// Session owns one training/sampling run: the immutable corpus and
// vocabulary, the encoder, and the network. It is single-threaded; every
// operation blocks until complete.
type Session struct {
	Vocab   *Vocabulary
	Encoder *SequenceEncoder
	Net     model.Net

	generator  *Generator
	records    []string // wrapped
	log        *log.Logger
	testLog    *log.Logger
	weightsDir string
}

// NewSession
// Loads the corpus behind the named data source, builds the vocabulary
// and encoder, and assembles the network. Data-source failures are
// unrecoverable; the caller is expected to log the error and terminate.
func NewSession(dataSource string, cfg SessionConfig) (*Session, error) {
	if cfg.Log == nil {
		cfg.Log = log.Default()
	}
	if cfg.TestLog == nil {
		cfg.TestLog = log.New(os.Stderr, "TESTRESULT ", log.LstdFlags)
	}
	if cfg.WeightsDir == "" {
		cfg.WeightsDir = "Documents/Weights"
	}
	if cfg.NewNet == nil {
		cfg.NewNet = func(vocabSize, maxLen int) model.Net {
			return model.NewLSTMNet(vocabSize, maxLen)
		}
	}
	raw, err := resources.LoadCorpus(dataSource, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	vocab := NewVocabulary(raw)
	if cfg.PruneBelow > 0 {
		before := vocab.Size()
		vocab = vocab.Prune(raw, cfg.PruneBelow)
		cfg.Log.Printf("Pruned vocabulary from %d to %d symbols.",
			before, vocab.Size())
	}
	records := make([]string, len(raw))
	totalSymbols := 0
	for idx := range raw {
		records[idx] = WrapRecord(raw[idx])
		totalSymbols += len([]rune(records[idx]))
	}
	cfg.Log.Printf("Total symbols: %d", totalSymbols)
	cfg.Log.Printf("Total records: %d", len(records))
	cfg.Log.Printf("Unique symbol count: %d", vocab.Size())
	cfg.Log.Printf("Max record length: %d", vocab.MaxStringLength())

	session := &Session{
		Vocab:      vocab,
		Encoder:    NewSequenceEncoder(vocab),
		Net:        cfg.NewNet(vocab.Size(), vocab.MaxStringLength()),
		records:    records,
		log:        cfg.Log,
		testLog:    cfg.TestLog,
		weightsDir: cfg.WeightsDir,
	}
	session.generator = NewGenerator(session.Net, vocab, session.Encoder)
	session.logSummary()
	return session, nil
}

func (s *Session) logSummary() {
	if summarizer, ok := s.Net.(interface{ Summary() string }); ok {
		s.log.Print(summarizer.Summary())
	}
}

// Train
// Encodes the wrapped corpus into paired feature/target tensors (target
// = feature shifted left one position, padded with the pad sentinel) and
// drives numEpochs fit passes. Every SAMPLE_EVERY epochs the sampler
// output is logged to the test-result stream; every CHECKPOINT_EVERY
// epochs the weights are checkpointed. A fit or checkpoint failure
// aborts the loop; there is no retry or partial-epoch recovery.
func (s *Session) Train(numEpochs int) error {
	features := make([]*mat.Dense, len(s.records))
	targets := make([]*mat.Dense, len(s.records))
	for idx, record := range s.records {
		features[idx] = s.Encoder.Encode(record)
		targets[idx] = s.Encoder.Encode(s.Encoder.ShiftForTarget(record))
	}
	// Batch size of maxStringLength is convention, not a requirement.
	batchSize := s.Vocab.MaxStringLength()
	for epoch := 0; epoch < numEpochs; epoch++ {
		metrics, err := s.Net.Fit(features, targets, batchSize)
		if err != nil {
			return fmt.Errorf("char_rnn: fit failed at epoch %d: %w",
				epoch, err)
		}
		s.log.Printf("Epoch %d  loss: %.4f  accuracy: %.4f",
			epoch, metrics.Loss, metrics.Accuracy)
		if epoch%SAMPLE_EVERY == 0 {
			intString, charString := s.GenerateText()
			s.testLog.Printf("Epoch: %d   Full Generated Int String: %s",
				epoch, intString)
			s.testLog.Printf("Epoch: %d   Full Generated Char String: %s",
				epoch, charString)
		}
		if epoch%CHECKPOINT_EVERY == 0 {
			if err := s.checkpoint(epoch); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkpoint persists the weights under a name encoding the layer count,
// vocabulary size, epoch, and a minute-granularity timestamp. Two
// checkpoints within the same minute collide; accepted limitation.
func (s *Session) checkpoint(epoch int) error {
	if err := os.MkdirAll(s.weightsDir, 0755); err != nil {
		return fmt.Errorf("char_rnn: creating weights dir: %w", err)
	}
	name := fmt.Sprintf("%dLSTM_Size%d_atEpoch%d_%s",
		model.LSTM_LAYERS, s.Vocab.Size(), epoch,
		time.Now().Format("06-01-02_03:04"))
	path := filepath.Join(s.weightsDir, name)
	if err := s.Net.SaveWeights(path); err != nil {
		return fmt.Errorf("char_rnn: checkpoint at epoch %d: %w", epoch, err)
	}
	s.log.Printf("Saved weights to `%s`.", path)
	return nil
}

// ImportWeights loads previously saved weights. If used, it should be
// called before further training or generation.
func (s *Session) ImportWeights(path string) error {
	if err := s.Net.LoadWeights(path); err != nil {
		return err
	}
	s.log.Printf("Imported weights from `%s`.", path)
	s.logSummary()
	return nil
}

// GenerateText samples one sequence from the current weights and returns
// the space-joined index string and the concatenated symbol string.
func (s *Session) GenerateText() (string, string) {
	return s.generator.Generate()
}
