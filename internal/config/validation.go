package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the configuration using struct tags registered with
// the go-playground/validator library.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("relpath", validateRelPath); err != nil {
		return fmt.Errorf("registering relpath validation: %w", err)
	}
	v.RegisterStructValidation(validateAutoUpdate, AutoUpdateConfig{})

	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// validateRelPath accepts endpoint paths that are joined onto the backend
// base URL: no scheme, no leading slash.
func validateRelPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return !strings.HasPrefix(p, "/") && !strings.Contains(p, "://")
}

// validateAutoUpdate rejects a refresh task that is enabled without an interval.
func validateAutoUpdate(sl validator.StructLevel) {
	c := sl.Current().Interface().(AutoUpdateConfig)
	if c.RefreshEnabled && c.RefreshIntervalSeconds <= 0 {
		sl.ReportError(c.RefreshIntervalSeconds, "RefreshIntervalSeconds", "refresh_interval_seconds", "required_with_refresh", "")
	}
}
