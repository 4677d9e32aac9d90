package network

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Layer holds the parameters connecting one layer of neurons to the next.
// Weights has OutputSize rows and InputSize columns.
type Layer struct {
	InputSize  int
	OutputSize int
	Weights    *mat.Dense
	Biases     *mat.VecDense
}

// newLayer draws every weight and bias independently from init.
func newLayer(inputSize, outputSize int, init distuv.Uniform) *Layer {
	weights := mat.NewDense(outputSize, inputSize, nil)
	for i := 0; i < outputSize; i++ {
		for j := 0; j < inputSize; j++ {
			weights.Set(i, j, init.Rand())
		}
	}
	biases := mat.NewVecDense(outputSize, nil)
	for i := 0; i < outputSize; i++ {
		biases.SetVec(i, init.Rand())
	}
	return &Layer{
		InputSize:  inputSize,
		OutputSize: outputSize,
		Weights:    weights,
		Biases:     biases,
	}
}

// Forward returns the weighted sum z = Wx + b and the activation sigmoid(z).
func (l *Layer) Forward(x mat.Vector) (*mat.VecDense, *mat.VecDense) {
	z := mat.NewVecDense(l.OutputSize, nil)
	z.MulVec(l.Weights, x)
	z.AddVec(z, l.Biases)
	return z, SigmoidVec(z)
}

func (l *Layer) clone() *Layer {
	return &Layer{
		InputSize:  l.InputSize,
		OutputSize: l.OutputSize,
		Weights:    mat.DenseCopyOf(l.Weights),
		Biases:     mat.VecDenseCopyOf(l.Biases),
	}
}
