package char_rnn

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/brodriguez/char_rnn/model"
)

// Generator samples one full sequence from a trained net, feeding each
// newly predicted symbol back in as input for the next position.
// Sampling is always arg-max, so repeated calls against identical
// weights yield identical output.
type Generator struct {
	net     model.Net
	vocab   *Vocabulary
	encoder *SequenceEncoder
}

func NewGenerator(net model.Net, vocab *Vocabulary,
	encoder *SequenceEncoder) *Generator {
	return &Generator{
		net:     net,
		vocab:   vocab,
		encoder: encoder,
	}
}

// Generate
// Starts from an all-zero tensor with the start sentinel one-hot at
// position 0. Each step runs inference on the entire current tensor,
// takes the arg-max of the predicted distribution at the current
// position, and writes its one-hot into the next position; a write past
// the last valid position is silently absorbed as natural sequence
// completion. Returns the space-joined index sequence and the
// concatenated symbol string.
func (g *Generator) Generate() (string, string) {
	maxLen := g.vocab.MaxStringLength()
	tensor := mat.NewDense(maxLen, g.vocab.Size(), nil)
	startIdx, _ := g.vocab.Index(StartSymbol)
	g.setOneHot(tensor, 0, startIdx)
	var intString, charString string
	for pos := 0; pos < maxLen; pos++ {
		probs := g.net.Predict(tensor)
		predicted := floats.MaxIdx(probs.RawRowView(pos))
		g.setOneHot(tensor, pos+1, predicted)
		// Only the final decode is semantically required; decoding
		// every step keeps intermediate output inspectable.
		intString, charString = g.decode(tensor)
	}
	return intString, charString
}

// setOneHot overwrites row pos with the one-hot of idx. An out-of-range
// row signals the natural end of the sequence and is ignored.
func (g *Generator) setOneHot(tensor *mat.Dense, pos, idx int) {
	rows, cols := tensor.Dims()
	if pos < 0 || pos >= rows {
		return
	}
	for col := 0; col < cols; col++ {
		tensor.Set(pos, col, 0)
	}
	tensor.Set(pos, idx, 1)
}

// decode reads the tensor back into the index and symbol renditions,
// stopping at the first all-zero row.
func (g *Generator) decode(tensor *mat.Dense) (string, string) {
	rows, _ := tensor.Dims()
	indices := make([]string, 0, rows)
	var chars strings.Builder
	for pos := 0; pos < rows; pos++ {
		sym, ok := g.encoder.DecodePosition(tensor, pos)
		if !ok {
			break
		}
		idx, _ := g.vocab.Index(sym)
		indices = append(indices, strconv.Itoa(idx))
		chars.WriteRune(sym)
	}
	return strings.Join(indices, " "), chars.String()
}
