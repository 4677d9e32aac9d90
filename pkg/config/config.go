package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is read when no -config flag is given. A missing file at the
// default path is not an error.
const DefaultPath = "nncli.toml"

// Config captures the runtime knobs of nncli.
type Config struct {
	Train TrainConfig `toml:"train"`
	Init  InitConfig  `toml:"init"`
	Serve ServeConfig `toml:"serve"`
}

// TrainConfig holds the defaults for the train command.
type TrainConfig struct {
	Epochs       int     `toml:"epochs"`
	BatchSize    int     `toml:"batch_size"`
	LearningRate float64 `toml:"learning_rate"`
	LogEvery     int     `toml:"log_every"`
}

// InitConfig controls parameter initialization. Seed 0 seeds from the clock.
type InitConfig struct {
	Seed uint64 `toml:"seed"`
}

// ServeConfig configures the inference server.
type ServeConfig struct {
	Addr string `toml:"addr"`
	Mode string `toml:"mode"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Seed     uint64
	LogEvery int
	Addr     string
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Train: TrainConfig{
			Epochs:       1000,
			BatchSize:    100,
			LearningRate: 2.5,
			LogEvery:     100,
		},
		Serve: ServeConfig{
			Addr: ":8080",
			Mode: "release",
		},
	}
}

// Load reads a Config from the TOML file at path. Keys missing from the file
// keep their default values; unknown keys are rejected. When path is the
// default path and does not exist, the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Seed != 0 {
		c.Init.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.Train.LogEvery = o.LogEvery
	}
	if o.Addr != "" {
		c.Serve.Addr = o.Addr
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Train.Epochs < 0 {
		return fmt.Errorf("train.epochs must be >= 0 (got %d)", c.Train.Epochs)
	}
	if c.Train.BatchSize <= 0 {
		return fmt.Errorf("train.batch_size must be > 0 (got %d)", c.Train.BatchSize)
	}
	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("train.learning_rate must be > 0 (got %g)", c.Train.LearningRate)
	}
	if c.Train.LogEvery < 0 {
		return fmt.Errorf("train.log_every must be >= 0 (got %d)", c.Train.LogEvery)
	}
	if c.Serve.Addr == "" {
		return errors.New("serve.addr must be set")
	}
	switch c.Serve.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("serve.mode must be debug, release or test (got %q)", c.Serve.Mode)
	}
	return nil
}
