package model

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/brodriguez/char_rnn/resources"
)

// Weight blob layout: magic, three uint32 dims (vocab size, max length,
// layer count), then each parameter as a uint32 element count followed by
// little-endian float64 values, in fixed parameter order.
const WEIGHTS_MAGIC = "CHRNN4L1"

// SaveWeights persists the current weights to path.
func (n *LSTMNet) SaveWeights(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: creating weights file: %w", err)
	}
	buf := bufio.NewWriter(file)
	header := []interface{}{
		uint32(n.vocabSize), uint32(n.maxLen), uint32(LSTM_LAYERS),
	}
	if _, err := buf.WriteString(WEIGHTS_MAGIC); err != nil {
		file.Close()
		return err
	}
	for _, field := range header {
		if err := binary.Write(buf, binary.LittleEndian, field); err != nil {
			file.Close()
			return err
		}
	}
	for _, p := range n.params {
		if err := binary.Write(buf, binary.LittleEndian,
			uint32(len(p.data))); err != nil {
			file.Close()
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, p.data); err != nil {
			file.Close()
			return err
		}
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadWeights replaces the current weights with a previously saved blob.
// The blob must have been written for the same vocabulary size and
// maximum sequence length.
func (n *LSTMNet) LoadWeights(path string) error {
	blob, cleanup, err := resources.OpenMmap(path)
	if err != nil {
		return fmt.Errorf("model: opening weights file: %w", err)
	}
	defer cleanup()
	reader := bytes.NewReader(blob)
	magic := make([]byte, len(WEIGHTS_MAGIC))
	if _, err := io.ReadFull(reader, magic); err != nil ||
		string(magic) != WEIGHTS_MAGIC {
		return fmt.Errorf("model: `%s` is not a weights file", path)
	}
	var vocabSize, maxLen, layerCount uint32
	for _, field := range []*uint32{&vocabSize, &maxLen, &layerCount} {
		if err := binary.Read(reader, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("model: truncated weights header: %w", err)
		}
	}
	if int(vocabSize) != n.vocabSize || int(maxLen) != n.maxLen ||
		int(layerCount) != LSTM_LAYERS {
		return fmt.Errorf(
			"model: weights built for vocab %d, length %d, %d layers; "+
				"net has vocab %d, length %d, %d layers",
			vocabSize, maxLen, layerCount,
			n.vocabSize, n.maxLen, LSTM_LAYERS)
	}
	for idx, p := range n.params {
		var count uint32
		if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
			return fmt.Errorf("model: truncated weights blob: %w", err)
		}
		if int(count) != len(p.data) {
			return fmt.Errorf(
				"model: parameter %d holds %d values, want %d",
				idx, count, len(p.data))
		}
		if err := binary.Read(reader, binary.LittleEndian, p.data); err != nil {
			return fmt.Errorf("model: truncated weights blob: %w", err)
		}
	}
	return nil
}
