package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const LSTM_LAYERS = 4
const DROPOUT_RATE = 0.2

// lstmLayer holds one recurrent layer's parameters. Gate columns are
// packed in the order input, forget, cell, output.
type lstmLayer struct {
	inSize int
	hidden int
	wx     *mat.Dense // [inSize, 4*hidden]
	wh     *mat.Dense // [hidden, 4*hidden]
	b      []float64  // [4*hidden]
	gWx    []float64
	gWh    []float64
	gB     []float64
}

// layerState caches one sequence's forward pass through a layer for
// backpropagation through time.
type layerState struct {
	in   [][]float64
	i    [][]float64
	f    [][]float64
	g    [][]float64
	o    [][]float64
	c    [][]float64
	tc   [][]float64
	h    [][]float64
	drop [][]float64 // inverted dropout masks, nil at inference
}

type param struct {
	data []float64
	grad []float64
}

// LSTMNet is the fixed stacked-recurrent architecture: all-zero input
// rows are masked out of the loss, four LSTM layers of width vocabSize
// each followed by dropout, a per-position dense projection back to
// vocabSize, and a softmax over the vocabulary dimension.
type LSTMNet struct {
	vocabSize int
	maxLen    int
	layers    [LSTM_LAYERS]*lstmLayer
	wy        *mat.Dense // [hidden, vocabSize]
	by        []float64
	gWy       []float64
	gBy       []float64
	params    []*param
	opt       *adam
	rng       *rand.Rand
}

// NewLSTMNet
// Assembles the network for a given vocabulary size and maximum sequence
// length. Loss is categorical cross-entropy over the per-position symbol
// distribution; the optimizer is Adam with default configuration. The
// first layer's input kernel is initialized to ones, everything else to
// scaled uniform noise, and forget-gate biases to one.
func NewLSTMNet(vocabSize, maxLen int) *LSTMNet {
	n := &LSTMNet{
		vocabSize: vocabSize,
		maxLen:    maxLen,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	hidden := vocabSize
	for l := 0; l < LSTM_LAYERS; l++ {
		ly := &lstmLayer{
			inSize: vocabSize,
			hidden: hidden,
			wx:     mat.NewDense(vocabSize, 4*hidden, nil),
			wh:     mat.NewDense(hidden, 4*hidden, nil),
			b:      make([]float64, 4*hidden),
			gWx:    make([]float64, vocabSize*4*hidden),
			gWh:    make([]float64, hidden*4*hidden),
			gB:     make([]float64, 4*hidden),
		}
		if l == 0 {
			fill(ly.wx.RawMatrix().Data, 1)
		} else {
			n.glorot(ly.wx.RawMatrix().Data, vocabSize, 4*hidden)
		}
		n.glorot(ly.wh.RawMatrix().Data, hidden, 4*hidden)
		// Unit forget-gate bias.
		fill(ly.b[hidden:2*hidden], 1)
		n.layers[l] = ly
	}
	n.wy = mat.NewDense(hidden, vocabSize, nil)
	n.by = make([]float64, vocabSize)
	n.gWy = make([]float64, hidden*vocabSize)
	n.gBy = make([]float64, vocabSize)
	n.glorot(n.wy.RawMatrix().Data, hidden, vocabSize)

	for _, ly := range n.layers {
		n.params = append(n.params,
			&param{ly.wx.RawMatrix().Data, ly.gWx},
			&param{ly.wh.RawMatrix().Data, ly.gWh},
			&param{ly.b, ly.gB})
	}
	n.params = append(n.params,
		&param{n.wy.RawMatrix().Data, n.gWy},
		&param{n.by, n.gBy})
	n.opt = newAdam(n.params)
	return n
}

// Summary returns a human-readable layer table in the spirit of the
// underlying library's model summary.
func (n *LSTMNet) Summary() string {
	var sb strings.Builder
	total := 0
	fmt.Fprintf(&sb, "Masking (all-zero rows) -> [%d, %d]\n",
		n.maxLen, n.vocabSize)
	for l, ly := range n.layers {
		count := len(ly.gWx) + len(ly.gWh) + len(ly.b)
		total += count
		fmt.Fprintf(&sb, "LSTM %d (width %d) + Dropout %.1f: %d params\n",
			l+1, ly.hidden, DROPOUT_RATE, count)
	}
	denseCount := len(n.gWy) + len(n.by)
	total += denseCount
	fmt.Fprintf(&sb, "Dense (per-position) + Softmax: %d params\n", denseCount)
	fmt.Fprintf(&sb, "Total params: %d", total)
	return sb.String()
}

// Predict runs inference on a full one-hot tensor and returns the
// per-position probability distributions, shape [maxLen, vocabSize].
// Dropout is inactive, so identical weights give identical output.
func (n *LSTMNet) Predict(x *mat.Dense) *mat.Dense {
	n.assertShape(x)
	probs, _, _, _ := n.forward(x, false)
	out := mat.NewDense(n.maxLen, n.vocabSize, nil)
	for t := range probs {
		out.SetRow(t, probs[t])
	}
	return out
}

// Fit
// Runs one full pass over the paired feature/target tensors, performing
// a gradient update per batchSize sequences, and returns the loss and
// accuracy averaged over all unmasked positions. Failures abort the pass
// and propagate to the caller; there is no retry.
func (n *LSTMNet) Fit(features, targets []*mat.Dense, batchSize int) (Metrics, error) {
	if len(features) == 0 {
		return Metrics{}, errors.New("model: empty feature batch")
	}
	if len(features) != len(targets) {
		return Metrics{}, fmt.Errorf(
			"model: %d feature tensors paired with %d target tensors",
			len(features), len(targets))
	}
	if batchSize <= 0 || batchSize > len(features) {
		batchSize = len(features)
	}
	var lossSum float64
	var correct, counted int
	for start := 0; start < len(features); start += batchSize {
		end := start + batchSize
		if end > len(features) {
			end = len(features)
		}
		n.zeroGrads()
		batchPositions := 0
		for s := start; s < end; s++ {
			loss, corr, positions, err := n.backprop(features[s], targets[s])
			if err != nil {
				return Metrics{}, err
			}
			lossSum += loss
			correct += corr
			counted += positions
			batchPositions += positions
		}
		if batchPositions == 0 {
			continue
		}
		n.scaleGrads(1 / float64(batchPositions))
		n.opt.Step(n.params)
	}
	if counted == 0 {
		return Metrics{}, errors.New("model: every position in the batch was masked")
	}
	return Metrics{
		Loss:     lossSum / float64(counted),
		Accuracy: float64(correct) / float64(counted),
	}, nil
}

func (n *LSTMNet) assertShape(x *mat.Dense) {
	rows, cols := x.Dims()
	if rows != n.maxLen || cols != n.vocabSize {
		panic(fmt.Sprintf("model: tensor shape [%d, %d], want [%d, %d]",
			rows, cols, n.maxLen, n.vocabSize))
	}
}

// forward runs the whole stack over one sequence. mask[t] is true for
// positions carrying real one-hot content; all-zero rows are implicit
// padding and are excluded from the loss by the caller.
func (n *LSTMNet) forward(x *mat.Dense, training bool) (
	probs [][]float64, states []*layerState, denseIn [][]float64,
	mask []bool) {
	T := n.maxLen
	cur := make([][]float64, T)
	mask = make([]bool, T)
	for t := 0; t < T; t++ {
		row := x.RawRowView(t)
		cur[t] = row
		for _, v := range row {
			if v != 0 {
				mask[t] = true
				break
			}
		}
	}
	states = make([]*layerState, 0, LSTM_LAYERS)
	for _, ly := range n.layers {
		st := ly.forward(cur)
		next := st.h
		if training {
			st.drop = make([][]float64, T)
			dropped := make([][]float64, T)
			for t := 0; t < T; t++ {
				dropped[t], st.drop[t] = n.dropout(st.h[t])
			}
			next = dropped
		}
		states = append(states, st)
		cur = next
	}
	denseIn = cur
	probs = make([][]float64, T)
	for t := 0; t < T; t++ {
		y := make([]float64, n.vocabSize)
		copy(y, n.by)
		addVecMat(y, denseIn[t], n.wy)
		softmax(y)
		probs[t] = y
	}
	return probs, states, denseIn, mask
}

func (ly *lstmLayer) forward(in [][]float64) *layerState {
	T := len(in)
	H := ly.hidden
	st := &layerState{
		in: in,
		i:  make([][]float64, T),
		f:  make([][]float64, T),
		g:  make([][]float64, T),
		o:  make([][]float64, T),
		c:  make([][]float64, T),
		tc: make([][]float64, T),
		h:  make([][]float64, T),
	}
	h := make([]float64, H)
	c := make([]float64, H)
	for t := 0; t < T; t++ {
		z := make([]float64, 4*H)
		copy(z, ly.b)
		addVecMat(z, in[t], ly.wx)
		addVecMat(z, h, ly.wh)
		i := z[0:H]
		f := z[H : 2*H]
		g := z[2*H : 3*H]
		o := z[3*H : 4*H]
		newC := make([]float64, H)
		tc := make([]float64, H)
		newH := make([]float64, H)
		for k := 0; k < H; k++ {
			i[k] = sigmoid(i[k])
			f[k] = sigmoid(f[k])
			g[k] = math.Tanh(g[k])
			o[k] = sigmoid(o[k])
			newC[k] = f[k]*c[k] + i[k]*g[k]
			tc[k] = math.Tanh(newC[k])
			newH[k] = o[k] * tc[k]
		}
		st.i[t], st.f[t], st.g[t], st.o[t] = i, f, g, o
		st.c[t], st.tc[t], st.h[t] = newC, tc, newH
		h, c = newH, newC
	}
	return st
}

// backprop accumulates gradients for one (feature, target) pair and
// returns the summed cross-entropy loss, the correct-argmax count, and
// the number of unmasked positions that contributed.
func (n *LSTMNet) backprop(x, y *mat.Dense) (
	loss float64, correct, positions int, err error) {
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	if xr != n.maxLen || xc != n.vocabSize ||
		yr != n.maxLen || yc != n.vocabSize {
		return 0, 0, 0, fmt.Errorf(
			"model: tensor shapes [%d, %d]/[%d, %d], want [%d, %d]",
			xr, xc, yr, yc, n.maxLen, n.vocabSize)
	}
	probs, states, denseIn, mask := n.forward(x, true)
	T := n.maxLen
	hidden := n.layers[LSTM_LAYERS-1].hidden
	dH := make([][]float64, T)
	for t := 0; t < T; t++ {
		if !mask[t] {
			continue
		}
		tIdx := oneHotIndex(y.RawRowView(t))
		if tIdx < 0 {
			continue
		}
		p := probs[t]
		loss += -math.Log(math.Max(p[tIdx], 1e-12))
		if floats.MaxIdx(p) == tIdx {
			correct++
		}
		positions++
		dy := make([]float64, n.vocabSize)
		copy(dy, p)
		dy[tIdx] -= 1
		addOuterFlat(n.gWy, n.vocabSize, denseIn[t], dy)
		floats.Add(n.gBy, dy)
		dIn := make([]float64, hidden)
		matVecT(dIn, dy, n.wy)
		dH[t] = dIn
	}
	for l := LSTM_LAYERS - 1; l >= 0; l-- {
		st := states[l]
		if st.drop != nil {
			for t := 0; t < T; t++ {
				if dH[t] == nil {
					continue
				}
				floats.Mul(dH[t], st.drop[t])
			}
		}
		dH = n.layers[l].backward(st, dH)
	}
	return loss, correct, positions, nil
}

func (ly *lstmLayer) backward(st *layerState, dOut [][]float64) [][]float64 {
	T := len(st.in)
	H := ly.hidden
	dIn := make([][]float64, T)
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	for t := T - 1; t >= 0; t-- {
		dh := make([]float64, H)
		if dOut[t] != nil {
			copy(dh, dOut[t])
		}
		floats.Add(dh, dhNext)
		i, f, g, o := st.i[t], st.f[t], st.g[t], st.o[t]
		tc := st.tc[t]
		var cPrev, hPrev []float64
		if t > 0 {
			cPrev, hPrev = st.c[t-1], st.h[t-1]
		}
		dz := make([]float64, 4*H)
		for k := 0; k < H; k++ {
			do := dh[k] * tc[k]
			dc := dh[k]*o[k]*(1-tc[k]*tc[k]) + dcNext[k]
			cp := 0.0
			if cPrev != nil {
				cp = cPrev[k]
			}
			dz[k] = dc * g[k] * i[k] * (1 - i[k])
			dz[H+k] = dc * cp * f[k] * (1 - f[k])
			dz[2*H+k] = dc * i[k] * (1 - g[k]*g[k])
			dz[3*H+k] = do * o[k] * (1 - o[k])
			dcNext[k] = dc * f[k]
		}
		addOuterFlat(ly.gWx, 4*H, st.in[t], dz)
		if hPrev != nil {
			addOuterFlat(ly.gWh, 4*H, hPrev, dz)
		}
		floats.Add(ly.gB, dz)
		din := make([]float64, ly.inSize)
		matVecT(din, dz, ly.wx)
		dIn[t] = din
		dhNext = make([]float64, H)
		matVecT(dhNext, dz, ly.wh)
	}
	return dIn
}

// dropout applies inverted dropout and returns the output along with the
// mask needed to route gradients in the backward pass.
func (n *LSTMNet) dropout(h []float64) (out, mask []float64) {
	keep := 1 - DROPOUT_RATE
	out = make([]float64, len(h))
	mask = make([]float64, len(h))
	for k := range h {
		if n.rng.Float64() < keep {
			mask[k] = 1 / keep
			out[k] = h[k] * mask[k]
		}
	}
	return out, mask
}

func (n *LSTMNet) zeroGrads() {
	for _, p := range n.params {
		fill(p.grad, 0)
	}
}

func (n *LSTMNet) scaleGrads(s float64) {
	for _, p := range n.params {
		floats.Scale(s, p.grad)
	}
}

func (n *LSTMNet) glorot(data []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for k := range data {
		data[k] = (n.rng.Float64()*2 - 1) * limit
	}
}

// addVecMat computes dst += x * W for a row vector x. One-hot and
// post-dropout inputs are mostly zero, so zero entries are skipped.
func addVecMat(dst, x []float64, w *mat.Dense) {
	raw := w.RawMatrix()
	for i, xv := range x {
		if xv == 0 {
			continue
		}
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		floats.AddScaled(dst, xv, row)
	}
}

// matVecT computes dst += W * dz (dz against the rows of W).
func matVecT(dst, dz []float64, w *mat.Dense) {
	raw := w.RawMatrix()
	for i := range dst {
		dst[i] += floats.Dot(raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols], dz)
	}
}

// addOuterFlat accumulates the outer product x ⊗ dz into a row-major
// gradient buffer with the given column count.
func addOuterFlat(grad []float64, cols int, x, dz []float64) {
	for i, xv := range x {
		if xv == 0 {
			continue
		}
		floats.AddScaled(grad[i*cols:(i+1)*cols], xv, dz)
	}
}

func oneHotIndex(row []float64) int {
	for i, v := range row {
		if v == 1 {
			return i
		}
	}
	return -1
}

func softmax(y []float64) {
	max := floats.Max(y)
	sum := 0.0
	for k := range y {
		y[k] = math.Exp(y[k] - max)
		sum += y[k]
	}
	floats.Scale(1/sum, y)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func fill(s []float64, v float64) {
	for k := range s {
		s[k] = v
	}
}
