// Package config contains the utilities used to validate
// the configurations of the stages.
package config

// Config defines the minimal interface for a configuration
// in order to be validated.
type Config interface {
	// Validate checks the configuration and fixes the invalid fields.
	Validate(ac *AnomalyCollector)
}
