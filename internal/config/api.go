package config

import (
	"errors"
	"time"
)

type ApiConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle-timeout"`
}

func (cfg *ApiConfig) Validate() error {
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return errors.New("api port must be between 1024 and 65535")
	}
	if cfg.WriteTimeout <= 0 || cfg.ReadTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("api timeouts must be positive")
	}
	return nil
}
