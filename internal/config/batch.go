package config

import "errors"

// BatchConfig bounds the cost of bulk operations.
type BatchConfig struct {
	MaxBatchSize int `mapstructure:"max-batch-size"`
}

func (cfg *BatchConfig) Validate() error {
	if cfg.MaxBatchSize <= 0 {
		return errors.New("max-batch-size must be positive")
	}
	return nil
}
