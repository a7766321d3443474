package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested experiment key is not part of the
	// loaded configuration.
	ErrNotFound = errors.New("experiment not found")

	// ErrDisabled means the experiment exists but is not currently enabled.
	ErrDisabled = errors.New("experiment disabled")

	// ErrInvalidAllocation means an allocation entry carries a negative
	// percentage. This is a configuration defect, not a runtime condition.
	ErrInvalidAllocation = errors.New("allocation percent must be >= 0")
)

// Split is one entry of an allocation table: a variant label and its
// percentage share of buckets. Allocations are ordered slices, never maps:
// the cumulative-threshold walk in SelectVariant depends on author order,
// and two allocations with the same percentages in a different order can
// disagree near a boundary.
type Split struct {
	Variant string `yaml:"variant" json:"variant"`
	Percent int    `yaml:"percent" json:"percent"`
}

// Experiment is one experiment descriptor as loaded at startup. Immutable
// for the process lifetime.
type Experiment struct {
	Key     string
	Name    string
	Enabled bool

	// Allocation is the ordered variant split. Preserved exactly as
	// authored.
	Allocation []Split

	// Targeting is an opaque key/value map reserved for future filtering.
	// The engine stores it but does not interpret it.
	Targeting map[string]any

	// ConversionEvent is the event type that counts a user as converted
	// for the primary metric (e.g. "signup_complete").
	ConversionEvent string

	// GuardrailEvent is the event type backing the non-inferiority
	// guardrail (e.g. "kyc_complete"), counted only when it happens
	// within GuardrailWindowDays of assignment.
	GuardrailEvent      string
	GuardrailWindowDays int
}

// Registry holds all experiment descriptors loaded at process start,
// both keyed and in file order. Read-only after construction.
type Registry struct {
	byKey   map[string]*Experiment
	ordered []*Experiment
}

// NewRegistry builds a Registry from descriptors in their authored order.
// Allocations are validated eagerly so a negative percentage is fatal at
// load rather than surfacing on the first assign call.
func NewRegistry(exps []*Experiment) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*Experiment, len(exps))}
	for _, e := range exps {
		for _, s := range e.Allocation {
			if s.Percent < 0 {
				return nil, fmt.Errorf("experiment %s, variant %s: %w", e.Key, s.Variant, ErrInvalidAllocation)
			}
		}
		r.byKey[e.Key] = e
		r.ordered = append(r.ordered, e)
	}
	return r, nil
}

// Lookup returns the enabled experiment for key, ErrNotFound for an
// unknown key, or ErrDisabled for a known but inactive one.
func (r *Registry) Lookup(key string) (*Experiment, error) {
	e, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	if !e.Enabled {
		return nil, fmt.Errorf("%q: %w", key, ErrDisabled)
	}
	return e, nil
}

// All returns the descriptors in file order.
func (r *Registry) All() []*Experiment {
	return r.ordered
}
