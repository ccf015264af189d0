package config

import "errors"

// ServiceConfig carries the service-wide identities: the admin principal
// authorized for privileged mutations (value updates, token settlement).
type ServiceConfig struct {
	AdminPrincipal string `mapstructure:"admin-principal"`
}

func (cfg *ServiceConfig) Validate() error {
	if cfg.AdminPrincipal == "" {
		return errors.New("admin-principal cannot be empty")
	}
	return nil
}
