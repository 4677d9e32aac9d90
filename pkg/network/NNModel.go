package network

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NeuronNetwork is a fully-connected feedforward network with sigmoid
// activations. Layer i of layers connects topology[i] neurons to
// topology[i+1] neurons; the input layer has no parameters of its own.
type NeuronNetwork struct {
	topology []int
	layers   []*Layer
}

// NewNeuronNetwork creates a network for topology with every weight and bias
// drawn uniformly from [-1, 1] using src.
func NewNeuronNetwork(topology []int, src rand.Source) (*NeuronNetwork, error) {
	if err := validateTopology(topology); err != nil {
		return nil, err
	}
	init := distuv.Uniform{Min: -1, Max: 1, Src: src}
	layers := make([]*Layer, len(topology)-1)
	for i := range layers {
		layers[i] = newLayer(topology[i], topology[i+1], init)
	}
	return &NeuronNetwork{
		topology: append([]int(nil), topology...),
		layers:   layers,
	}, nil
}

// NewNeuronNetworkFromParameters builds a network from existing parameters.
// weights[i] must be topology[i+1] x topology[i] and biases[i] must have
// topology[i+1] entries. The parameters are copied.
func NewNeuronNetworkFromParameters(topology []int, weights []*mat.Dense, biases []*mat.VecDense) (*NeuronNetwork, error) {
	if err := validateTopology(topology); err != nil {
		return nil, err
	}
	if len(weights) != len(topology)-1 || len(biases) != len(topology)-1 {
		return nil, fmt.Errorf("%w: %d layers need %d weight matrices and bias vectors, got %d and %d",
			ErrInvalidTopology, len(topology), len(topology)-1, len(weights), len(biases))
	}
	layers := make([]*Layer, len(topology)-1)
	for i := range layers {
		if weights[i] == nil || biases[i] == nil {
			return nil, fmt.Errorf("%w: layer %d has no parameters", ErrInvalidTopology, i+1)
		}
		r, c := weights[i].Dims()
		if r != topology[i+1] || c != topology[i] {
			return nil, fmt.Errorf("%w: layer %d weights are %dx%d, want %dx%d",
				ErrInvalidTopology, i+1, r, c, topology[i+1], topology[i])
		}
		if biases[i].Len() != topology[i+1] {
			return nil, fmt.Errorf("%w: layer %d has %d biases, want %d",
				ErrInvalidTopology, i+1, biases[i].Len(), topology[i+1])
		}
		layers[i] = &Layer{
			InputSize:  topology[i],
			OutputSize: topology[i+1],
			Weights:    mat.DenseCopyOf(weights[i]),
			Biases:     mat.VecDenseCopyOf(biases[i]),
		}
	}
	return &NeuronNetwork{
		topology: append([]int(nil), topology...),
		layers:   layers,
	}, nil
}

func validateTopology(topology []int) error {
	if len(topology) < 2 {
		return fmt.Errorf("%w: need at least 2 layers, got %d", ErrInvalidTopology, len(topology))
	}
	for i, n := range topology {
		if n <= 0 {
			return fmt.Errorf("%w: layer %d has %d neurons", ErrInvalidTopology, i, n)
		}
	}
	return nil
}

// Topology returns a copy of the per-layer neuron counts.
func (nn *NeuronNetwork) Topology() []int {
	return append([]int(nil), nn.topology...)
}

// InputSize is the number of neurons in the input layer.
func (nn *NeuronNetwork) InputSize() int { return nn.topology[0] }

// OutputSize is the number of neurons in the output layer.
func (nn *NeuronNetwork) OutputSize() int { return nn.topology[len(nn.topology)-1] }

// NumLayers is the number of weight matrices, len(Topology())-1.
func (nn *NeuronNetwork) NumLayers() int { return len(nn.layers) }

// Parameters returns copies of the weight matrices and bias vectors, ordered
// from the first hidden layer to the output layer.
func (nn *NeuronNetwork) Parameters() ([]*mat.Dense, []*mat.VecDense) {
	weights := make([]*mat.Dense, len(nn.layers))
	biases := make([]*mat.VecDense, len(nn.layers))
	for i, layer := range nn.layers {
		weights[i] = mat.DenseCopyOf(layer.Weights)
		biases[i] = mat.VecDenseCopyOf(layer.Biases)
	}
	return weights, biases
}

// Clone returns a deep copy of the network.
func (nn *NeuronNetwork) Clone() *NeuronNetwork {
	layers := make([]*Layer, len(nn.layers))
	for i, layer := range nn.layers {
		layers[i] = layer.clone()
	}
	return &NeuronNetwork{
		topology: append([]int(nil), nn.topology...),
		layers:   layers,
	}
}

// Equal reports whether both networks have the same topology and bit-identical
// parameters.
func (nn *NeuronNetwork) Equal(other *NeuronNetwork) bool {
	if other == nil || len(nn.topology) != len(other.topology) {
		return false
	}
	for i := range nn.topology {
		if nn.topology[i] != other.topology[i] {
			return false
		}
	}
	for i, layer := range nn.layers {
		if !mat.Equal(layer.Weights, other.layers[i].Weights) || !mat.Equal(layer.Biases, other.layers[i].Biases) {
			return false
		}
	}
	return true
}

func (nn *NeuronNetwork) String() string {
	var s string
	s += fmt.Sprintf("topology: %v\n", nn.topology)
	for i, layer := range nn.layers {
		s += fmt.Sprintf("layer %d weights:\n%v\n", i+1, mat.Formatted(layer.Weights, mat.Prefix("  "), mat.Squeeze()))
		s += fmt.Sprintf("layer %d biases:\n%v\n", i+1, mat.Formatted(layer.Biases, mat.Prefix("  "), mat.Squeeze()))
	}
	return s
}
