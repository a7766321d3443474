package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "ablab/internal/db"
)

type eventRequest struct {
	UserID        string         `json:"user_id"`
	ExperimentKey string         `json:"experiment_key"`
	Variant       string         `json:"variant"`
	EventType     string         `json:"event_type"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type eventResponse struct {
	Status string `json:"status"`
	ID     uint   `json:"id"`
}

// RecordEventHandler appends one behavioral event, enforcing that its
// variant matches the stored assignment (assigning lazily when none
// exists). Mismatches are rejected with 400 and write nothing.
func RecordEventHandler(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req eventRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.UserID == "" || req.ExperimentKey == "" || req.Variant == "" || req.EventType == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "user_id, experiment_key, variant and event_type are required")
			return
		}

		evt, err := dbpkg.RecordEvent(db, req.UserID, req.ExperimentKey, req.Variant, req.EventType, req.Metadata)
		if err != nil {
			recordError(ctx, err)
			return
		}

		eventsTotal.WithLabelValues(req.ExperimentKey, evt.Variant, req.EventType).Inc()

		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, eventResponse{Status: "ok", ID: evt.ID})
	}
}

// RecentEvents returns the newest events for an experiment, for operator
// spot checks.
func RecentEvents(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		key := string(ctx.QueryArgs().Peek("experiment"))
		if key == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "experiment is required")
			return
		}

		limit := 50
		if l := string(ctx.QueryArgs().Peek("limit")); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		var events []dbpkg.Event
		if err := db.Where("experiment_key = ?", key).
			Order("id desc").
			Limit(limit).
			Find(&events).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load events")
			return
		}

		out := make([]map[string]any, 0, len(events))
		for _, e := range events {
			out = append(out, map[string]any{
				"id":         e.ID,
				"created_at": e.CreatedAt.Format(time.RFC3339Nano),
				"user_id":    e.UserID,
				"variant":    e.Variant,
				"event_type": e.EventType,
				"metadata":   e.Metadata,
			})
		}

		jsonResponse(ctx, map[string]any{"experiment_key": key, "events": out})
	}
}
