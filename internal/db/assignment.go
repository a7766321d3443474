package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetAssignment returns the stored assignment for (userID, experimentKey),
// or nil when the pair has never been assigned. Storage errors propagate
// unmodified.
func GetAssignment(db *gorm.DB, userID, experimentKey string) (*Assignment, error) {
	var a Assignment
	err := db.Where("user_id = ? AND experiment_key = ?", userID, experimentKey).
		Limit(1).Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

// CreateAssignmentIfAbsent atomically inserts an assignment for
// (userID, experimentKey) and returns the surviving row. Coordination
// between racing callers is delegated entirely to the database's
// conflict handling on the composite unique index: the insert is
// ON CONFLICT DO NOTHING, and when it affects zero rows the winner is
// re-read so a losing caller reports the persisted variant rather than
// the one it computed.
func CreateAssignmentIfAbsent(db *gorm.DB, userID, experimentKey, variant string) (*Assignment, error) {
	a := Assignment{
		UserID:        userID,
		ExperimentKey: experimentKey,
		Variant:       variant,
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "experiment_key"}},
		DoNothing: true,
	}).Create(&a)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return &a, nil
	}

	// Lost the race (or the row predates this call): return the winner.
	return GetAssignment(db, userID, experimentKey)
}
