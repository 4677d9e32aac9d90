package network

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Instance is one training example: an input vector and the output the
// network should produce for it.
type Instance struct {
	Input  *mat.VecDense
	Output *mat.VecDense
}

// FeedForward propagates input through every layer and returns the
// activation of the output layer. It does not modify the network.
func (nn *NeuronNetwork) FeedForward(input mat.Vector) (*mat.VecDense, error) {
	if err := nn.checkInput(input); err != nil {
		return nil, err
	}
	var a mat.Vector = input
	var out *mat.VecDense
	for _, layer := range nn.layers {
		_, out = layer.Forward(a)
		a = out
	}
	return out, nil
}

// trace runs a forward pass keeping every intermediate result.
// activations[0] is the input, activations[l+1] and sums[l] belong to layer l.
func (nn *NeuronNetwork) trace(input mat.Vector) (sums []*mat.VecDense, activations []mat.Vector) {
	sums = make([]*mat.VecDense, len(nn.layers))
	activations = make([]mat.Vector, len(nn.layers)+1)
	activations[0] = input
	for i, layer := range nn.layers {
		z, a := layer.Forward(activations[i])
		sums[i] = z
		activations[i+1] = a
	}
	return sums, activations
}

func (nn *NeuronNetwork) checkInput(input mat.Vector) error {
	if input == nil || input.Len() != nn.InputSize() {
		return fmt.Errorf("%w: input has %d entries, network takes %d", ErrDimensionMismatch, vecLen(input), nn.InputSize())
	}
	return nil
}

func (nn *NeuronNetwork) checkOutput(output mat.Vector) error {
	if output == nil || output.Len() != nn.OutputSize() {
		return fmt.Errorf("%w: output has %d entries, network produces %d", ErrDimensionMismatch, vecLen(output), nn.OutputSize())
	}
	return nil
}

func vecLen(v mat.Vector) int {
	if v == nil {
		return 0
	}
	return v.Len()
}

// Gradients holds one weight and one bias gradient per layer, ordered from
// the first hidden layer to the output layer.
type Gradients struct {
	WeightGrads []*mat.Dense
	BiasGrads   []*mat.VecDense
}

// NewGradients returns zeroed gradients shaped like the network parameters.
func NewGradients(nn *NeuronNetwork) *Gradients {
	g := &Gradients{
		WeightGrads: make([]*mat.Dense, 0, len(nn.layers)),
		BiasGrads:   make([]*mat.VecDense, 0, len(nn.layers)),
	}
	for _, layer := range nn.layers {
		g.WeightGrads = append(g.WeightGrads, mat.NewDense(layer.OutputSize, layer.InputSize, nil))
		g.BiasGrads = append(g.BiasGrads, mat.NewVecDense(layer.OutputSize, nil))
	}
	return g
}

// Add accumulates other into g. Both must have the same layer shapes.
func (g *Gradients) Add(other *Gradients) error {
	if err := g.sameShape(other); err != nil {
		return err
	}
	for i := range g.WeightGrads {
		g.WeightGrads[i].Add(g.WeightGrads[i], other.WeightGrads[i])
		g.BiasGrads[i].AddVec(g.BiasGrads[i], other.BiasGrads[i])
	}
	return nil
}

// Scale multiplies every gradient by f.
func (g *Gradients) Scale(f float64) {
	for i := range g.WeightGrads {
		g.WeightGrads[i].Scale(f, g.WeightGrads[i])
		g.BiasGrads[i].ScaleVec(f, g.BiasGrads[i])
	}
}

// sameShape reports ErrDimensionMismatch unless other has g's layer count
// and per-layer shapes.
func (g *Gradients) sameShape(other *Gradients) error {
	if other == nil {
		return fmt.Errorf("%w: nil gradients", ErrDimensionMismatch)
	}
	if len(other.WeightGrads) != len(g.WeightGrads) || len(other.BiasGrads) != len(g.BiasGrads) {
		return fmt.Errorf("%w: %d gradient layers, want %d", ErrDimensionMismatch, len(other.WeightGrads), len(g.WeightGrads))
	}
	for i, w := range g.WeightGrads {
		ow, ob := other.WeightGrads[i], other.BiasGrads[i]
		if ow == nil || ob == nil {
			return fmt.Errorf("%w: layer %d has no gradient", ErrDimensionMismatch, i+1)
		}
		r, c := w.Dims()
		or, oc := ow.Dims()
		if r != or || c != oc || g.BiasGrads[i].Len() != ob.Len() {
			return fmt.Errorf("%w: layer %d gradient is %dx%d+%d, want %dx%d+%d",
				ErrDimensionMismatch, i+1, or, oc, ob.Len(), r, c, g.BiasGrads[i].Len())
		}
	}
	return nil
}

func (g *Gradients) String() string {
	var b strings.Builder
	for i := range g.WeightGrads {
		fmt.Fprintf(&b, "layer %d dW:\n%v\n", i+1, mat.Formatted(g.WeightGrads[i], mat.Prefix("  "), mat.Squeeze()))
		fmt.Fprintf(&b, "layer %d db:\n%v\n", i+1, mat.Formatted(g.BiasGrads[i], mat.Prefix("  "), mat.Squeeze()))
	}
	return b.String()
}

// CalculateGradients backpropagates the squared error of a single example
// and returns the parameter gradients already multiplied by learningRate.
// The network is not modified.
func (nn *NeuronNetwork) CalculateGradients(input, desired mat.Vector, learningRate float64) (*Gradients, error) {
	if err := nn.checkInput(input); err != nil {
		return nil, err
	}
	if err := nn.checkOutput(desired); err != nil {
		return nil, err
	}
	grads := NewGradients(nn)
	sums, activations := nn.trace(input)

	// delta[L] = (a[L] - y) ⊙ σ'(z[L])
	last := len(nn.layers) - 1
	delta := mat.NewVecDense(nn.OutputSize(), nil)
	delta.SubVec(activations[last+1], desired)
	delta.MulElemVec(delta, SigmoidPrimeVec(sums[last]))

	for i := last; i >= 0; i-- {
		// dW = lr * delta * a[l-1]^T, db = lr * delta
		grads.WeightGrads[i].Outer(learningRate, delta, activations[i])
		grads.BiasGrads[i].ScaleVec(learningRate, delta)

		if i > 0 {
			// delta[l] = (W[l+1]^T * delta[l+1]) ⊙ σ'(z[l])
			prev := mat.NewVecDense(nn.layers[i].InputSize, nil)
			prev.MulVec(nn.layers[i].Weights.T(), delta)
			prev.MulElemVec(prev, SigmoidPrimeVec(sums[i-1]))
			delta = prev
		}
	}
	return grads, nil
}

// RunBatch performs one SGD step on the instances in
// [start, min(start+batchSize, len(data))). The scaled gradients of the
// batch are averaged over the number of instances actually used and
// subtracted from the parameters. It returns that number.
func (nn *NeuronNetwork) RunBatch(data []Instance, start, batchSize int, learningRate float64) (int, error) {
	if start < 0 {
		return 0, fmt.Errorf("%w: negative start index %d", ErrEmptyBatch, start)
	}
	end := start + batchSize
	if end > len(data) {
		end = len(data)
	}
	n := end - start
	if batchSize <= 0 || n <= 0 {
		return 0, fmt.Errorf("%w: start %d, batch size %d, dataset size %d", ErrEmptyBatch, start, batchSize, len(data))
	}

	accum := NewGradients(nn)
	for i := start; i < end; i++ {
		grads, err := nn.CalculateGradients(data[i].Input, data[i].Output, learningRate)
		if err != nil {
			return 0, fmt.Errorf("instance %d: %w", i, err)
		}
		if err := accum.Add(grads); err != nil {
			return 0, err
		}
	}
	accum.Scale(1 / float64(n))
	if err := nn.UpdateParameters(accum); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateParameters subtracts grads from the weights and biases. Gradients
// shaped for another network are rejected and nothing is changed.
func (nn *NeuronNetwork) UpdateParameters(grads *Gradients) error {
	if err := nn.checkGradients(grads); err != nil {
		return err
	}
	for i, layer := range nn.layers {
		layer.Weights.Sub(layer.Weights, grads.WeightGrads[i])
		layer.Biases.SubVec(layer.Biases, grads.BiasGrads[i])
	}
	return nil
}

func (nn *NeuronNetwork) checkGradients(grads *Gradients) error {
	if grads == nil {
		return fmt.Errorf("%w: nil gradients", ErrDimensionMismatch)
	}
	if len(grads.WeightGrads) != len(nn.layers) || len(grads.BiasGrads) != len(nn.layers) {
		return fmt.Errorf("%w: %d gradient layers, network has %d", ErrDimensionMismatch, len(grads.WeightGrads), len(nn.layers))
	}
	for i, layer := range nn.layers {
		w, b := grads.WeightGrads[i], grads.BiasGrads[i]
		if w == nil || b == nil {
			return fmt.Errorf("%w: layer %d has no gradient", ErrDimensionMismatch, i+1)
		}
		if r, c := w.Dims(); r != layer.OutputSize || c != layer.InputSize || b.Len() != layer.OutputSize {
			return fmt.Errorf("%w: layer %d gradient is %dx%d+%d, want %dx%d+%d",
				ErrDimensionMismatch, i+1, r, c, b.Len(), layer.OutputSize, layer.InputSize, layer.OutputSize)
		}
	}
	return nil
}

// Train runs epochs passes of mini-batch SGD over data. Batches are taken in
// dataset order; the data is never shuffled.
func (nn *NeuronNetwork) Train(data []Instance, epochs, batchSize int, learningRate float64) error {
	return nn.TrainEpochs(data, epochs, batchSize, learningRate, nil)
}

// TrainEpochs is Train with a callback invoked after every epoch. An error
// from onEpoch stops training and is returned.
func (nn *NeuronNetwork) TrainEpochs(data []Instance, epochs, batchSize int, learningRate float64, onEpoch func(epoch int) error) error {
	if epochs < 0 {
		return fmt.Errorf("network: negative epoch count %d", epochs)
	}
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", ErrEmptyBatch, batchSize)
	}
	if err := nn.CheckDataset(data); err != nil {
		return err
	}
	for epoch := 0; epoch < epochs; epoch++ {
		for start := 0; start < len(data); start += batchSize {
			if _, err := nn.RunBatch(data, start, batchSize, learningRate); err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
		}
		if onEpoch != nil {
			if err := onEpoch(epoch); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckDataset verifies every instance matches the input and output layers.
func (nn *NeuronNetwork) CheckDataset(data []Instance) error {
	for i, inst := range data {
		if err := nn.checkInput(inst.Input); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
		if err := nn.checkOutput(inst.Output); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
	}
	return nil
}

// MeanSquaredError returns the sum over data of ||y - f(x)||² divided by
// 2*len(data).
func (nn *NeuronNetwork) MeanSquaredError(data []Instance) (float64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyDataset
	}
	if err := nn.CheckDataset(data); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, inst := range data {
		output, err := nn.FeedForward(inst.Input)
		if err != nil {
			return 0, err
		}
		diff := mat.NewVecDense(output.Len(), nil)
		diff.SubVec(inst.Output, output)
		sum += mat.Dot(diff, diff)
	}
	return sum / float64(2*len(data)), nil
}
