// internal/pkg/config/validators.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingRequiredConfig marks a setting that must be provided
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if cfg.Bot.Token == "" && cfg.AWS.SecretName == "" {
		return fmt.Errorf("%w: %s or AWS_SECRET_NAME", ErrMissingRequiredConfig, BotTokenKey)
	}
	if strings.HasPrefix(cfg.Bot.Token, "MISSING_") {
		return fmt.Errorf("%w: bot token", ErrMissingRequiredConfig)
	}

	if cfg.Bot.StoreDriver == StoreDriverPostgres {
		if strings.Contains(cfg.Database.Password, "MISSING_") || cfg.Database.Password == "inventory_dev" {
			return fmt.Errorf("%w: database password", ErrMissingRequiredConfig)
		}
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("database SSL must be enabled in production")
		}
	}

	// the worker imports sheets into the document from another process
	if cfg.Asynq.Enabled && cfg.Bot.StoreDriver == StoreDriverFile {
		return fmt.Errorf("background worker requires the %s store driver in production", StoreDriverPostgres)
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("secure headers must be enabled in production")
	}

	if cfg.Server.TLSEnabled {
		if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
			return fmt.Errorf("TLS cert and key files must be provided when TLS is enabled")
		}
	}

	return nil
}
