package db

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrVariantMismatch means a caller tried to record an event under a
// variant that conflicts with the stored assignment for that
// (user, experiment) pair. The event is discarded; nothing is written.
var ErrVariantMismatch = errors.New("variant mismatch")

// RecordEvent validates evt's variant against the stored assignment and
// appends it to the event log. A pair with no assignment yet gets one
// lazily from the submitted variant, so replayed or out-of-order event
// delivery still produces a consistent record. Both writes happen in one
// transaction: on any failure nothing is recorded.
func RecordEvent(db *gorm.DB, userID, experimentKey, variant, eventType string, metadata map[string]any) (*Event, error) {
	evt := Event{
		UserID:        userID,
		ExperimentKey: experimentKey,
		Variant:       variant,
		EventType:     eventType,
	}
	if metadata != nil {
		evt.Metadata = datatypes.JSONMap(metadata)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		assigned, err := GetAssignment(tx, userID, experimentKey)
		if err != nil {
			return err
		}
		if assigned == nil {
			assigned, err = CreateAssignmentIfAbsent(tx, userID, experimentKey, variant)
			if err != nil {
				return err
			}
		}
		// The surviving assignment can still differ from the submitted
		// variant when a concurrent writer won the lazy create.
		if assigned.Variant != variant {
			return fmt.Errorf("assigned %s, got %s: %w", assigned.Variant, variant, ErrVariantMismatch)
		}

		return tx.Create(&evt).Error
	})
	if err != nil {
		return nil, err
	}
	return &evt, nil
}
