package char_rnn

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"gonum.org/v1/gonum/mat"
)

const ENCODE_LRU_SZ = 4096

// SequenceEncoder converts symbol sequences into fixed-length one-hot
// tensors and back. Encoded tensors are cached per record string; the
// training loop re-encodes the same wrapped records every session, so
// the cache keeps the hot path cheap.
type SequenceEncoder struct {
	vocab     *Vocabulary
	cache     *lru.ARCCache
	LruHits   int
	LruMisses int
}

func NewSequenceEncoder(vocab *Vocabulary) *SequenceEncoder {
	cache, _ := lru.NewARC(ENCODE_LRU_SZ)
	return &SequenceEncoder{
		vocab: vocab,
		cache: cache,
	}
}

// Encode
// Maps each symbol of record to its one-hot row of a [maxStringLength,
// vocabSize] tensor. Rows beyond the record's length stay all-zero,
// representing implicit padding. The returned tensor is shared with the
// cache and must not be mutated. A symbol missing from the vocabulary is
// a corpus/vocabulary mismatch bug and panics.
func (e *SequenceEncoder) Encode(record string) *mat.Dense {
	if cached, ok := e.cache.Get(record); ok {
		e.LruHits++
		return cached.(*mat.Dense)
	}
	e.LruMisses++
	tensor := mat.NewDense(e.vocab.MaxStringLength(), e.vocab.Size(), nil)
	for pos, sym := range []rune(record) {
		idx, ok := e.vocab.Index(sym)
		if !ok {
			panic(fmt.Sprintf(
				"char_rnn: symbol %q at position %d is not in the vocabulary",
				sym, pos))
		}
		tensor.Set(pos, idx, 1)
	}
	e.cache.Add(record, tensor)
	return tensor
}

// DecodePosition returns the symbol one-hot encoded at the given row,
// or ok=false for an all-zero row, which marks the end of meaningful
// content.
func (e *SequenceEncoder) DecodePosition(tensor *mat.Dense, pos int) (rune, bool) {
	_, cols := tensor.Dims()
	for idx := 0; idx < cols; idx++ {
		if tensor.At(pos, idx) == 1 {
			return e.vocab.symbols[idx], true
		}
	}
	return 0, false
}

// ShiftForTarget drops the first symbol and appends the pad sentinel,
// producing the next-character prediction target aligned with Encode:
// the target's position i holds what the feature holds at position i+1.
func (e *SequenceEncoder) ShiftForTarget(record string) string {
	runes := []rune(record)
	if len(runes) == 0 {
		return record
	}
	return string(append(runes[1:], PadSymbol))
}
