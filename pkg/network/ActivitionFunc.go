package network

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sigmoid is the logistic function 1/(1+e^-x).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// SigmoidPrime is the derivative of Sigmoid evaluated at the pre-activation x.
func SigmoidPrime(x float64) float64 {
	s := Sigmoid(x)
	return s * (1 - s)
}

// SigmoidVec applies Sigmoid element-wise.
func SigmoidVec(z mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		out.SetVec(i, Sigmoid(z.AtVec(i)))
	}
	return out
}

// SigmoidPrimeVec applies SigmoidPrime element-wise to pre-activations.
func SigmoidPrimeVec(z mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		out.SetVec(i, SigmoidPrime(z.AtVec(i)))
	}
	return out
}
