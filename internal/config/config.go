package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Dataset      string  `yaml:"dataset"`
	LearningRate float64 `yaml:"learning_rate"`
	MaxEpochs    int     `yaml:"max_epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Patience     int     `yaml:"patience"`
	LogEvery     int     `yaml:"log_every"`
	Checkpoint   string  `yaml:"checkpoint"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Dataset      string
	LearningRate float64
	MaxEpochs    int
	BatchSize    int
	Patience     int
	LogEvery     int
	Checkpoint   string
}

// Default returns the hyper-parameters of the reference MNIST run.
func Default() *Config {
	return &Config{
		LearningRate: 0.13,
		MaxEpochs:    100,
		BatchSize:    500,
		Patience:     5000,
		LogEvery:     0,
	}
}

// Load reads a Config from a YAML file of scalar keys.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Dataset != "" {
		c.Dataset = o.Dataset
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.MaxEpochs > 0 {
		c.MaxEpochs = o.MaxEpochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Patience > 0 {
		c.Patience = o.Patience
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.Checkpoint != "" {
		c.Checkpoint = o.Checkpoint
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Dataset == "" {
		return errors.New("dataset path must be set")
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.MaxEpochs <= 0 {
		return errors.Errorf("max_epochs must be > 0 (got %d)", c.MaxEpochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Patience < 0 {
		return errors.Errorf("patience must be >= 0 (got %d)", c.Patience)
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")
		switch key {
		case "dataset":
			cfg.Dataset = value
		case "learning_rate":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: learning_rate", lineNo)
			}
			cfg.LearningRate = v
		case "max_epochs":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: max_epochs", lineNo)
			}
			cfg.MaxEpochs = v
		case "batch_size":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: batch_size", lineNo)
			}
			cfg.BatchSize = v
		case "patience":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: patience", lineNo)
			}
			cfg.Patience = v
		case "log_every":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: log_every", lineNo)
			}
			cfg.LogEvery = v
		case "checkpoint":
			cfg.Checkpoint = value
		default:
			return nil, errors.Errorf("line %d: unknown key %s", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return cfg, nil
}
