package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "ablab/internal/db"
	"ablab/internal/experiment"
)

type assignResponse struct {
	ExperimentKey string    `json:"experiment_key"`
	Variant       string    `json:"variant"`
	AssignedAt    time.Time `json:"assigned_at"`
	Source        string    `json:"source"`
}

// AssignHandler deterministically buckets a user into a variant and
// persists the assignment. Repeated calls for the same pair return the
// stored variant; the bucket computation only runs for first-time pairs.
func AssignHandler(db *gorm.DB, reg *experiment.Registry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID := string(ctx.QueryArgs().Peek("user_id"))
		key := string(ctx.QueryArgs().Peek("experiment"))
		if userID == "" || key == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "user_id and experiment are required")
			return
		}

		exp, err := reg.Lookup(key)
		if experimentError(ctx, err) {
			return
		}

		existing, err := dbpkg.GetAssignment(db, userID, key)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load assignment")
			return
		}
		if existing != nil {
			jsonResponse(ctx, assignResponse{
				ExperimentKey: key,
				Variant:       existing.Variant,
				AssignedAt:    existing.CreatedAt,
				Source:        "api",
			})
			return
		}

		variant, err := exp.Assign(userID)
		if err != nil {
			// Negative percentages are a configuration defect; nothing
			// gets assigned.
			errResponse(ctx, fasthttp.StatusInternalServerError, "invalid allocation")
			return
		}

		created, err := dbpkg.CreateAssignmentIfAbsent(db, userID, key, variant)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to persist assignment")
			return
		}

		assignmentsTotal.WithLabelValues(key, created.Variant).Inc()

		jsonResponse(ctx, assignResponse{
			ExperimentKey: key,
			Variant:       created.Variant,
			AssignedAt:    created.CreatedAt,
			Source:        "api",
		})
	}
}
