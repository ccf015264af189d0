package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Db      DbConfig      `mapstructure:"db"`
	Api     ApiConfig     `mapstructure:"api"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Queue   *QueueConfig  `mapstructure:"queue"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Batch   BatchConfig   `mapstructure:"batch"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Service.Validate(); err != nil {
		return err
	}
	if err := cfg.Db.Validate(); err != nil {
		return err
	}
	if err := cfg.Api.Validate(); err != nil {
		return err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}
	// queue config is optional; without it events are discarded
	if cfg.Queue != nil {
		if err := cfg.Queue.Validate(); err != nil {
			return err
		}
	}
	if err := cfg.Poller.Validate(); err != nil {
		return err
	}
	return cfg.Batch.Validate()
}

// New returns a fully parsed Config from the given file path.
func New(cfgFile string) (*Config, error) {
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
