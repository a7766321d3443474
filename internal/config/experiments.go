package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ablab/internal/experiment"
)

// experimentsFile mirrors the on-disk descriptor format. Allocation is a
// YAML sequence so author order survives decoding; an unordered map here
// would silently change boundary behavior.
type experimentsFile struct {
	Experiments []experimentEntry `yaml:"experiments"`
}

type experimentEntry struct {
	Key                 string             `yaml:"key"`
	Name                string             `yaml:"name"`
	Enabled             *bool              `yaml:"enabled"`
	Allocation          []experiment.Split `yaml:"allocation"`
	Targeting           map[string]any     `yaml:"targeting"`
	ConversionEvent     string             `yaml:"conversion_event"`
	GuardrailEvent      string             `yaml:"guardrail_event"`
	GuardrailWindowDays int                `yaml:"guardrail_window_days"`
}

// LoadExperiments reads the experiment descriptor file and builds the
// immutable registry used for the process lifetime. Missing fields fall
// back to documented defaults: enabled=true, an even A/B split, the
// onboarding conversion and KYC guardrail events, and a 7-day guardrail
// window.
func LoadExperiments(path string) (*experiment.Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiments file: %w", err)
	}

	var file experimentsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse experiments file: %w", err)
	}

	exps := make([]*experiment.Experiment, 0, len(file.Experiments))
	for _, e := range file.Experiments {
		if e.Key == "" {
			return nil, fmt.Errorf("experiment entry without key in %s", path)
		}
		exp := &experiment.Experiment{
			Key:                 e.Key,
			Name:                e.Name,
			Enabled:             true,
			Allocation:          e.Allocation,
			Targeting:           e.Targeting,
			ConversionEvent:     e.ConversionEvent,
			GuardrailEvent:      e.GuardrailEvent,
			GuardrailWindowDays: e.GuardrailWindowDays,
		}
		if exp.Name == "" {
			exp.Name = e.Key
		}
		if e.Enabled != nil {
			exp.Enabled = *e.Enabled
		}
		if len(exp.Allocation) == 0 {
			exp.Allocation = []experiment.Split{{Variant: "A", Percent: 50}, {Variant: "B", Percent: 50}}
		}
		if exp.ConversionEvent == "" {
			exp.ConversionEvent = "signup_complete"
		}
		if exp.GuardrailEvent == "" {
			exp.GuardrailEvent = "kyc_complete"
		}
		if exp.GuardrailWindowDays <= 0 {
			exp.GuardrailWindowDays = 7
		}
		exps = append(exps, exp)
	}

	return experiment.NewRegistry(exps)
}
