package network

import "errors"

var (
	// ErrInvalidTopology is returned for a network shape with fewer than two
	// layers or a layer without neurons.
	ErrInvalidTopology = errors.New("network: invalid topology")
	// ErrDimensionMismatch is returned when an input or output vector does not
	// match the size of the input or output layer.
	ErrDimensionMismatch = errors.New("network: dimension mismatch")
	// ErrEmptyBatch is returned when a mini-batch contains no instances.
	ErrEmptyBatch = errors.New("network: empty batch")
	// ErrEmptyDataset is returned when a loss is requested over no instances.
	ErrEmptyDataset = errors.New("network: empty dataset")
	// ErrCorruptNetwork is returned when a persisted network cannot be decoded.
	ErrCorruptNetwork = errors.New("network: corrupt network file")
)
