package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against the `validate` struct tags above and parses
// every configured locator, following the teacher's go-playground/validator
// based Validate step (struct tags declare the constraint, Validate enforces
// it at load time rather than at first use).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Mode == "client" && len(cfg.Connect) == 0 {
		return fmt.Errorf("invalid configuration: client mode requires at least one connect locator")
	}
	if _, err := ParseLocators(cfg.Connect); err != nil {
		return fmt.Errorf("invalid connect locator: %w", err)
	}
	if _, err := ParseLocators(cfg.Listen); err != nil {
		return fmt.Errorf("invalid listen locator: %w", err)
	}
	return nil
}
