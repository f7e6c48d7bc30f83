package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks cfg against its struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fromValidationErrors(verrs)
		}
		return err
	}

	if !strings.HasPrefix(cfg.API.Login.Path, "/") && !strings.Contains(cfg.API.Login.Path, "://") {
		return Errors{NewInvalidFieldError("api.login.path", "must be an absolute path or url")}
	}

	if cfg.API.Retry.MaxDelay > 0 && cfg.API.Retry.MaxDelay < cfg.API.Retry.Delay {
		return Errors{NewInvalidFieldError("api.retry.maxdelay",
			fmt.Sprintf("must be 0 or at least api.retry.delay (%s)", cfg.API.Retry.Delay))}
	}

	return nil
}

// Address returns the host:port the server listens on.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
