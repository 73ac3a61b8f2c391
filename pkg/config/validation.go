package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom
// rules.
//
// Declarative validation runs first via go-playground/validator struct
// tags, followed by rules that cannot be expressed in tags.
//
// Note: log level normalization happens in ApplyDefaults, not here;
// validation accepts both cases.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Tenant names must be unique
	names := make(map[string]bool)
	for i, tenant := range cfg.Repository.Tenants {
		if names[tenant.Name] {
			return fmt.Errorf("repository.tenants[%d]: duplicate tenant name %q", i, tenant.Name)
		}
		names[tenant.Name] = true
	}

	// The badger backend needs a directory to persist into
	if cfg.Content.Type == "badger" {
		if path, _ := cfg.Content.Badger["path"].(string); path == "" {
			return fmt.Errorf("content.badger: path is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
