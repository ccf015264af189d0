package config

import (
	"errors"
	"time"
)

type PollerConfig struct {
	ExpiryCheckerPollingInterval time.Duration `mapstructure:"expiry-checker-polling-interval"`
	ExpiredCommitmentsLimit      int64         `mapstructure:"expired-commitments-limit"`
}

func (cfg *PollerConfig) Validate() error {
	if cfg.ExpiryCheckerPollingInterval <= 0 {
		return errors.New("expiry-checker-polling-interval must be positive")
	}
	if cfg.ExpiredCommitmentsLimit <= 0 {
		return errors.New("expired-commitments-limit must be positive")
	}
	return nil
}
