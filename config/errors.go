package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigError represents a configuration error with actionable guidance.
// All error messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string // "missing" or "invalid"
	Field    string // config field path, e.g. "api.retry.delay"
	Message  string
	Action   string
}

// Error implements the error interface with lowercase formatting.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, " ")
}

// Errors collects every problem found in one validation pass.
type Errors []*ConfigError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// NewMissingFieldError creates an error for a required missing configuration field.
func NewMissingFieldError(field string) *ConfigError {
	envVar := EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", envVar, field),
	}
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string) *ConfigError {
	return &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}
}

// FieldErrors returns the individual field errors carried by err, if any.
func FieldErrors(err error) []*ConfigError {
	var es Errors
	if errors.As(err, &es) {
		return es
	}
	var single *ConfigError
	if errors.As(err, &single) {
		return []*ConfigError{single}
	}
	return nil
}

func fromValidationErrors(verrs validator.ValidationErrors) Errors {
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		switch fe.Tag() {
		case "required", "required_if":
			out = append(out, NewMissingFieldError(field))
		case "oneof":
			out = append(out, NewInvalidFieldError(field,
				fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))))
		default:
			out = append(out, NewInvalidFieldError(field,
				fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())))
		}
	}
	return out
}

// fieldPath turns "Config.API.Retry.Delay" into "api.retry.delay".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}
