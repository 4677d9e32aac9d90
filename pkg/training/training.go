package training

import (
	"errors"
	"fmt"
	"log"
	"time"

	"nncli/pkg/network"

	"github.com/google/uuid"
)

// Options captures the knobs of one training session.
type Options struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// LogEvery logs the loss every N epochs; 0 disables progress lines.
	LogEvery int
}

// Report summarizes a finished session.
type Report struct {
	RunID       string
	Instances   int
	InitialLoss float64
	FinalLoss   float64
	Elapsed     time.Duration
}

// Validate verifies the options are runnable.
func (o Options) Validate() error {
	if o.Epochs < 0 {
		return fmt.Errorf("training: epochs must be >= 0 (got %d)", o.Epochs)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("training: batch size must be > 0 (got %d)", o.BatchSize)
	}
	if o.LearningRate <= 0 {
		return fmt.Errorf("training: learning rate must be > 0 (got %g)", o.LearningRate)
	}
	if o.LogEvery < 0 {
		return fmt.Errorf("training: log interval must be >= 0 (got %d)", o.LogEvery)
	}
	return nil
}

// TrainModel trains nn on data in place and reports the loss before and
// after. nn is only modified when the whole dataset matches its topology.
func TrainModel(nn *network.NeuronNetwork, data []network.Instance, opts Options, logger *log.Logger) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("training: dataset has no instances")
	}
	if logger == nil {
		logger = log.Default()
	}
	report := &Report{
		RunID:     uuid.New().String(),
		Instances: len(data),
	}

	initialLoss, err := nn.MeanSquaredError(data)
	if err != nil {
		return nil, err
	}
	report.InitialLoss = initialLoss
	logger.Printf("run=%s instances=%d epochs=%d batch_size=%d learning_rate=%g loss=%.6f",
		report.RunID, len(data), opts.Epochs, opts.BatchSize, opts.LearningRate, initialLoss)

	start := time.Now()
	err = nn.TrainEpochs(data, opts.Epochs, opts.BatchSize, opts.LearningRate, func(epoch int) error {
		if opts.LogEvery == 0 || (epoch+1)%opts.LogEvery != 0 {
			return nil
		}
		loss, err := nn.MeanSquaredError(data)
		if err != nil {
			return err
		}
		logger.Printf("run=%s epoch=%d loss=%.6f elapsed=%s", report.RunID, epoch+1, loss, time.Since(start).Round(time.Millisecond))
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)

	finalLoss, err := nn.MeanSquaredError(data)
	if err != nil {
		return nil, err
	}
	report.FinalLoss = finalLoss
	logger.Printf("run=%s finished loss=%.6f elapsed=%s", report.RunID, finalLoss, report.Elapsed.Round(time.Millisecond))
	return report, nil
}
