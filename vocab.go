// Package char_rnn generates novel text one character at a time with a
// stacked recurrent network. It owns the pieces that define correctness:
// the character vocabulary, the one-hot sequence encoding, the training
// loop, and the autoregressive sampler. The network itself lives behind
// the narrow model.Net contract.
package char_rnn

import (
	"sort"
	"strings"
)

// Sentinel symbols wrapped around every record. Each record begins with
// StartSymbol and ends with EndSymbol followed by a single PadSymbol.
const (
	PadSymbol   = '\x00'
	StartSymbol = '\x01'
	EndSymbol   = '\x02'
)

// SENTINEL_COUNT is the per-record length overhead added by wrapping.
const SENTINEL_COUNT = 3

// Vocabulary is the deterministic total order over the unique symbols of
// a corpus. Indices are the dense range [0, Size()); the symbol→index
// assignment directly controls one-hot dimension ordering consumed by
// trained weights, so it is sorted by code point and immutable once
// built.
type Vocabulary struct {
	symbols         []rune
	indices         map[rune]int
	maxStringLength int
}

// WrapRecord brackets a raw record with the start sentinel and the
// trailing (end, pad) sentinel pair.
func WrapRecord(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + SENTINEL_COUNT)
	sb.WriteRune(StartSymbol)
	sb.WriteString(text)
	sb.WriteRune(EndSymbol)
	sb.WriteRune(PadSymbol)
	return sb.String()
}

// NewVocabulary
// Scans the raw corpus records, fixes maxStringLength as the longest raw
// record plus the sentinel overhead, and derives the sorted unique symbol
// set of the wrapped records along with both direction mappings.
func NewVocabulary(records []string) *Vocabulary {
	maxLen := 0
	seen := make(map[rune]struct{})
	for _, record := range records {
		runeLen := len([]rune(record))
		if runeLen > maxLen {
			maxLen = runeLen
		}
		for _, sym := range WrapRecord(record) {
			seen[sym] = struct{}{}
		}
	}
	symbols := make([]rune, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i] < symbols[j]
	})
	return newVocabulary(symbols, maxLen+SENTINEL_COUNT)
}

func newVocabulary(symbols []rune, maxStringLength int) *Vocabulary {
	indices := make(map[rune]int, len(symbols))
	for idx, sym := range symbols {
		indices[sym] = idx
	}
	return &Vocabulary{
		symbols:         symbols,
		indices:         indices,
		maxStringLength: maxStringLength,
	}
}

// Size returns the one-hot dimensionality.
func (v *Vocabulary) Size() int {
	return len(v.symbols)
}

// MaxStringLength returns the fixed encoded length of every record.
func (v *Vocabulary) MaxStringLength() int {
	return v.maxStringLength
}

// Index returns the dense index of a symbol.
func (v *Vocabulary) Index(sym rune) (int, bool) {
	idx, ok := v.indices[sym]
	return idx, ok
}

// Symbol returns the symbol at a dense index.
func (v *Vocabulary) Symbol(idx int) (rune, bool) {
	if idx < 0 || idx >= len(v.symbols) {
		return 0, false
	}
	return v.symbols[idx], true
}

// Symbols returns a copy of the ordered symbol set.
func (v *Vocabulary) Symbols() []rune {
	out := make([]rune, len(v.symbols))
	copy(out, v.symbols)
	return out
}

// Prune
// Returns a new vocabulary without symbols that occur fewer than
// minCount times across the wrapped corpus. Sentinels are always kept.
// Counting happens over a snapshot before any removal, and the pruned
// vocabulary is materialized fresh; the set being iterated is never
// mutated. Disabled by default: callers opt in explicitly.
func (v *Vocabulary) Prune(records []string, minCount int) *Vocabulary {
	counts := make(map[rune]int, len(v.symbols))
	for _, record := range records {
		for _, sym := range WrapRecord(record) {
			counts[sym]++
		}
	}
	kept := make([]rune, 0, len(v.symbols))
	for _, sym := range v.symbols {
		switch sym {
		case PadSymbol, StartSymbol, EndSymbol:
			kept = append(kept, sym)
			continue
		}
		if counts[sym] >= minCount {
			kept = append(kept, sym)
		}
	}
	return newVocabulary(kept, v.maxStringLength)
}
