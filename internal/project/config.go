// Package project implements analysis-project creation: configuration
// resolution for a classified target, variant selection, and transactional
// materialization of the generated artifacts.
package project

import (
	senverrors "github.com/s2e-tools/senv/internal/errors"
)

// Config is the flat configuration mapping describing one project. It is
// assembled by layered merge and treated as read-only once handed to a
// variant: downstream code derives new mappings with Merge and never
// mutates a Config it did not create.
type Config map[string]any

// requiredKeys must all be present before any template rendering is
// attempted, for every variant. Absence is a configuration error, not a
// silent default.
var requiredKeys = []string{
	"project_name",
	"project_dir",
	"project_type",
	"target",
	"target_path",
	"target_args",
	"use_seeds",
	"image_arch",
	"dynamically_linked",
}

// Merge returns a new Config with overlay keys written over c. Neither
// input is modified.
func (c Config) Merge(overlay map[string]any) Config {
	merged := make(Config, len(c)+len(overlay))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// Require fails with an InvalidConfigurationError naming the first missing
// key.
func (c Config) Require(keys ...string) error {
	for _, key := range keys {
		if _, ok := c[key]; !ok {
			return senverrors.New(senverrors.CodeInvalidConfiguration,
				"required configuration key %q is missing", key)
		}
	}
	return nil
}

// String returns the string value of key, or "" when absent or of another
// type. Required keys are validated up front, so the zero value is only
// ever seen for genuinely optional keys.
func (c Config) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Bool returns the boolean value of key, or false when absent.
func (c Config) Bool(key string) bool {
	v, _ := c[key].(bool)
	return v
}

// Strings returns the string-slice value of key, or nil when absent.
func (c Config) Strings(key string) []string {
	v, _ := c[key].([]string)
	return v
}

// Ints returns the int-slice value of key, or nil when absent.
func (c Config) Ints(key string) []int {
	v, _ := c[key].([]int)
	return v
}

// toMap converts the Config for template rendering.
func (c Config) toMap() map[string]any {
	return map[string]any(c)
}
