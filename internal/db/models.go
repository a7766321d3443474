package db

import (
	"time"

	"gorm.io/datatypes"
)

// Assignment pins a (user, experiment) pair to the first variant it was
// ever bucketed into. At most one row per pair ever exists, enforced by
// the composite unique index; rows are never updated or deleted.
type Assignment struct {
	ID uint `gorm:"primaryKey"`

	// CreatedAt is the assignment timestamp surfaced as assigned_at.
	CreatedAt time.Time

	UserID        string `gorm:"uniqueIndex:idx_assignment_unique,priority:1;size:128;not null"`
	ExperimentKey string `gorm:"uniqueIndex:idx_assignment_unique,priority:2;size:128;not null"`

	Variant string `gorm:"size:64;not null"`
}

// Event is one row of the append-only behavioral event log. Events are
// immutable once written; the auto-increment ID doubles as the
// monotonically increasing event identifier.
type Event struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	UserID        string `gorm:"index:idx_event_user_exp,priority:1;size:128;not null"`
	ExperimentKey string `gorm:"index:idx_event_user_exp,priority:2;index;size:128;not null"`

	Variant   string `gorm:"size:64;not null"`
	EventType string `gorm:"index;size:128;not null"`

	// Metadata holds arbitrary key/value pairs for this event (device,
	// country, funnel step details) so callers can attach context
	// without schema changes.
	Metadata datatypes.JSONMap `gorm:"type:json"`
}

// ConversionFact stores one aggregated (experiment, variant) row: how
// many users were exposed, how many converted, and how many cleared the
// guardrail event within its window. Filled by the aggregation worker
// and read by the decision endpoint.
type ConversionFact struct {
	ID uint `gorm:"primaryKey"`

	ExperimentKey string `gorm:"uniqueIndex:idx_fact_unique,priority:1;size:128;not null"`
	Variant       string `gorm:"uniqueIndex:idx_fact_unique,priority:2;size:64;not null"`

	ExposedUsers   int64 `gorm:"not null"`
	ConvertedUsers int64 `gorm:"not null"`
	GuardrailUsers int64 `gorm:"not null"`

	// ComputedAt is when the aggregation pass produced this row.
	ComputedAt time.Time `gorm:"not null"`
}

// ServiceKey authorizes a caller (SDK, traffic generator) to hit the
// assignment and event endpoints. The bootstrap key from env is created
// on startup.
type ServiceKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Name is a friendly identifier for the calling service
	// (e.g. "onboarding-web").
	Name string `gorm:"size:128;not null"`

	// Environment indicates the deployment environment (prod, staging, dev).
	Environment string `gorm:"size:32;not null"`

	// Key is the actual bearer token value.
	Key string `gorm:"uniqueIndex;size:255;not null"`

	Active bool `gorm:"default:true"`
}

// Operator is a human allowed to read decisions and raw events. The
// bootstrap operator (from env) is created as a row on startup with a
// bcrypt password hash.
type Operator struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`
}
