package config

import "errors"

// QueueConfig points at the RabbitMQ broker used for event publication.
type QueueConfig struct {
	Url      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Exchange string `mapstructure:"exchange"`
}

func (cfg *QueueConfig) Validate() error {
	if cfg.Url == "" {
		return errors.New("queue url cannot be empty")
	}
	if cfg.Exchange == "" {
		return errors.New("queue exchange cannot be empty")
	}
	return nil
}
