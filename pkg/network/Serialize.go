package network

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

/*
Persisted network layout, little endian:

	magic   uint32
	version uint32
	biases  : count, then per vector  (length, mat.VecDense binary)
	weights : count, then per matrix  (length, mat.Dense binary)
	topology: count, then one uint64 per layer
*/

const (
	fileMagic   uint32 = 0x4E4E4554 // "NNET"
	fileVersion uint32 = 1

	maxBlob = 1 << 31
	// maxLayers bounds the layer and topology counts.
	maxLayers = 1 << 16
)

// Encode writes the network to w.
func (nn *NeuronNetwork) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, v := range []uint32{fileMagic, fileVersion} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if err := writeUint(bw, len(nn.layers)); err != nil {
		return err
	}
	for _, layer := range nn.layers {
		blob, err := layer.Biases.MarshalBinary()
		if err != nil {
			return fmt.Errorf("network: encode biases: %w", err)
		}
		if err := writeBlob(bw, blob); err != nil {
			return err
		}
	}

	if err := writeUint(bw, len(nn.layers)); err != nil {
		return err
	}
	for _, layer := range nn.layers {
		blob, err := layer.Weights.MarshalBinary()
		if err != nil {
			return fmt.Errorf("network: encode weights: %w", err)
		}
		if err := writeBlob(bw, blob); err != nil {
			return err
		}
	}

	if err := writeUint(bw, len(nn.topology)); err != nil {
		return err
	}
	for _, n := range nn.topology {
		if err := writeUint(bw, n); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// MarshalBinary returns the encoded network.
func (nn *NeuronNetwork) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := nn.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a network written by Encode. r must end after the
// topology block; trailing bytes are ErrCorruptNetwork.
func Decode(r io.Reader) (*NeuronNetwork, error) {
	br := bufio.NewReader(r)
	var header [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, corrupt("header", err)
	}
	if header[0] != fileMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrCorruptNetwork, header[0])
	}
	if header[1] != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptNetwork, header[1])
	}

	count, err := readCount(br, "bias count")
	if err != nil {
		return nil, err
	}
	biases := make([]*mat.VecDense, count)
	for i := range biases {
		blob, err := readBlob(br)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("biases %d", i), err)
		}
		var v mat.VecDense
		if err := v.UnmarshalBinary(blob); err != nil {
			return nil, corrupt(fmt.Sprintf("biases %d", i), err)
		}
		biases[i] = &v
	}

	count, err = readCount(br, "weight count")
	if err != nil {
		return nil, err
	}
	weights := make([]*mat.Dense, count)
	for i := range weights {
		blob, err := readBlob(br)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("weights %d", i), err)
		}
		var m mat.Dense
		if err := m.UnmarshalBinary(blob); err != nil {
			return nil, corrupt(fmt.Sprintf("weights %d", i), err)
		}
		weights[i] = &m
	}

	count, err = readCount(br, "topology size")
	if err != nil {
		return nil, err
	}
	topology := make([]int, count)
	for i := range topology {
		var n uint64
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, corrupt("topology", err)
		}
		if n > maxBlob {
			return nil, fmt.Errorf("%w: layer %d has %d neurons", ErrCorruptNetwork, i, n)
		}
		topology[i] = int(n)
	}
	if _, err := br.Peek(1); err == nil {
		return nil, fmt.Errorf("%w: trailing data after topology", ErrCorruptNetwork)
	} else if err != io.EOF {
		return nil, corrupt("trailer", err)
	}

	nn, err := NewNeuronNetworkFromParameters(topology, weights, biases)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptNetwork, err)
	}
	return nn, nil
}

// UnmarshalNetwork decodes a network from data.
func UnmarshalNetwork(data []byte) (*NeuronNetwork, error) {
	return Decode(bytes.NewReader(data))
}

// Save writes the network to path. The file is written next to path and
// renamed into place, so path is either the old or the new network.
func (nn *NeuronNetwork) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("network: create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := nn.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("network: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("network: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("network: write %s: %w", path, err)
	}
	return nil
}

// Load reads a network saved with Save.
func Load(path string) (*NeuronNetwork, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network: open %s: %w", path, err)
	}
	defer f.Close()

	nn, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("network: read %s: %w", path, err)
	}
	return nn, nil
}

func corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %s: %v", ErrCorruptNetwork, what, err)
}

func writeUint(w io.Writer, n int) error {
	return binary.Write(w, binary.LittleEndian, uint64(n))
}

func writeBlob(w io.Writer, blob []byte) error {
	if err := writeUint(w, len(blob)); err != nil {
		return err
	}
	_, err := w.Write(blob)
	return err
}

func readCount(r io.Reader, what string) (int, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, corrupt(what, err)
	}
	if n > maxLayers {
		return 0, fmt.Errorf("%w: %s %d", ErrCorruptNetwork, what, n)
	}
	return int(n), nil
}

func readBlob(r io.Reader) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxBlob {
		return nil, fmt.Errorf("length %d too large", n)
	}
	blob, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if uint64(len(blob)) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return blob, nil
}
