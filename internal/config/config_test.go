package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			AdminPrincipal: "admin",
		},
		Db: DbConfig{
			Username: "test",
			Password: "test",
			Address:  "mongodb://localhost:27017",
			DbName:   "test",
		},
		Api: ApiConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 2112,
		},
		Queue: &QueueConfig{
			Url:      "amqp://localhost:5672",
			User:     "test",
			Password: "test",
			Exchange: "commitment.events",
		},
		Poller: PollerConfig{
			ExpiryCheckerPollingInterval: 10 * time.Second,
			ExpiredCommitmentsLimit:      100,
		},
		Batch: BatchConfig{
			MaxBatchSize: 100,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_OptionalQueue(t *testing.T) {
	cfg := validConfig()
	cfg.Queue = nil
	require.NoError(t, cfg.Validate())
}

func TestConfig_Invalid(t *testing.T) {
	t.Run("missing admin", func(t *testing.T) {
		cfg := validConfig()
		cfg.Service.AdminPrincipal = ""
		assert.Error(t, cfg.Validate())
	})
	t.Run("missing db address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Db.Address = ""
		assert.Error(t, cfg.Validate())
	})
	t.Run("bad api port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Api.Port = 80
		assert.Error(t, cfg.Validate())
	})
	t.Run("zero poller interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Poller.ExpiryCheckerPollingInterval = 0
		assert.Error(t, cfg.Validate())
	})
	t.Run("zero batch ceiling", func(t *testing.T) {
		cfg := validConfig()
		cfg.Batch.MaxBatchSize = 0
		assert.Error(t, cfg.Validate())
	})
	t.Run("queue without exchange", func(t *testing.T) {
		cfg := validConfig()
		cfg.Queue.Exchange = ""
		assert.Error(t, cfg.Validate())
	})
}
