package config

import "fmt"

type MetricsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (cfg *MetricsConfig) Validate() error {
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535")
	}
	return nil
}

func (cfg *MetricsConfig) GetMetricsPort() int {
	return cfg.Port
}
