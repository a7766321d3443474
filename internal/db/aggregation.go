package db

import (
	"log"
	"time"

	"gorm.io/gorm"

	"ablab/internal/experiment"
)

// RunAggregationFor recomputes the ConversionFact rows for one
// experiment from the assignments and events tables: exposed users are
// assignment rows, a user counts as converted when it has the
// experiment's conversion event, and as a guardrail success when its
// guardrail event lands within the guardrail window of assignment.
func RunAggregationFor(db *gorm.DB, exp *experiment.Experiment) error {
	var assignments []Assignment
	if err := db.Where("experiment_key = ?", exp.Key).
		Select("user_id", "variant", "created_at").
		Find(&assignments).Error; err != nil {
		return err
	}

	var events []Event
	if err := db.Where("experiment_key = ? AND event_type IN ?", exp.Key,
		[]string{exp.ConversionEvent, exp.GuardrailEvent}).
		Select("user_id", "event_type", "created_at").
		Find(&events).Error; err != nil {
		return err
	}

	type userFacts struct {
		variant    string
		assignedAt time.Time
		converted  bool
		guardrail  bool
	}
	users := make(map[string]*userFacts, len(assignments))
	for _, a := range assignments {
		users[a.UserID] = &userFacts{variant: a.Variant, assignedAt: a.CreatedAt}
	}

	window := time.Duration(exp.GuardrailWindowDays) * 24 * time.Hour
	for _, e := range events {
		u, ok := users[e.UserID]
		if !ok {
			// Event without an assignment row should not happen (the
			// recorder assigns lazily); skip rather than miscount.
			continue
		}
		switch e.EventType {
		case exp.ConversionEvent:
			u.converted = true
		case exp.GuardrailEvent:
			if !e.CreatedAt.After(u.assignedAt.Add(window)) {
				u.guardrail = true
			}
		}
	}

	type counts struct {
		exposed   int64
		converted int64
		guardrail int64
	}
	perVariant := make(map[string]*counts)
	for _, u := range users {
		c, ok := perVariant[u.variant]
		if !ok {
			c = &counts{}
			perVariant[u.variant] = c
		}
		c.exposed++
		if u.converted {
			c.converted++
		}
		if u.guardrail {
			c.guardrail++
		}
	}

	now := time.Now().UTC()
	for variant, c := range perVariant {
		row := ConversionFact{
			ExperimentKey:  exp.Key,
			Variant:        variant,
			ExposedUsers:   c.exposed,
			ConvertedUsers: c.converted,
			GuardrailUsers: c.guardrail,
			ComputedAt:     now,
		}
		var existing ConversionFact
		err := db.Where("experiment_key = ? AND variant = ?", exp.Key, variant).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			err = db.Create(&row).Error
		} else if err == nil {
			err = db.Model(&existing).Updates(map[string]interface{}{
				"exposed_users":   row.ExposedUsers,
				"converted_users": row.ConvertedUsers,
				"guardrail_users": row.GuardrailUsers,
				"computed_at":     row.ComputedAt,
			}).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FactsFor returns the aggregated rows for an experiment ordered by
// variant, the shape the decision endpoint consumes.
func FactsFor(db *gorm.DB, experimentKey string) ([]ConversionFact, error) {
	var facts []ConversionFact
	err := db.Where("experiment_key = ?", experimentKey).
		Order("variant asc").
		Find(&facts).Error
	return facts, err
}

// StartAggregationWorker runs an aggregation pass for every enabled
// experiment at startup, then on a fixed interval.
func StartAggregationWorker(db *gorm.DB, reg *experiment.Registry, every time.Duration) {
	go func() {
		runAll := func() {
			for _, exp := range reg.All() {
				if !exp.Enabled {
					continue
				}
				if err := RunAggregationFor(db, exp); err != nil {
					log.Printf("aggregation error for %s: %v", exp.Key, err)
				}
			}
		}

		runAll()

		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for range ticker.C {
			runAll()
		}
	}()
}
