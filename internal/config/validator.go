package config

import (
	"github.com/FerroO2000/plogger/internal"
)

// Validator validates a configuration and logs every anomaly as a warning.
type Validator struct {
	tel *internal.Telemetry

	anomalyCollector *AnomalyCollector
}

// NewValidator returns a new validator.
func NewValidator(tel *internal.Telemetry) *Validator {
	return &Validator{
		tel: tel,

		anomalyCollector: NewAnomalyCollector(),
	}
}

// Validate validates the given configuration.
// It returns the number of anomalies that were fixed.
func (v *Validator) Validate(cfg Config) int {
	cfg.Validate(v.anomalyCollector)

	for an := range v.anomalyCollector.iter() {
		v.handleAnomaly(an)
	}

	return v.anomalyCollector.Len()
}

func (v *Validator) handleAnomaly(an *anomaly) {
	v.tel.LogWarn("config anomaly",
		"field", an.field, "reason", an.reason,
		"actual", an.actual, "fallback", an.fallback)
}
