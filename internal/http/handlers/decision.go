package handlers

import (
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"ablab/internal/config"
	dbpkg "ablab/internal/db"
	"ablab/internal/experiment"
	"ablab/internal/stats"
)

type decisionResponse struct {
	ExperimentKey string        `json:"experiment_key"`
	Params        stats.Params  `json:"params"`
	Result        *stats.Result `json:"result"`
}

// DecisionParams builds the engine parameters from defaults plus any
// config overrides.
func DecisionParams(cfg *config.Config) stats.Params {
	p := stats.DefaultParams()
	if cfg.ROPE > 0 {
		p.ROPE = cfg.ROPE
	}
	if cfg.DecisionProb > 0 {
		p.DecisionProb = cfg.DecisionProb
	}
	if cfg.GuardrailDelta > 0 {
		p.GuardrailDelta = cfg.GuardrailDelta
	}
	if cfg.PriorAlpha > 0 {
		p.PriorAlpha = cfg.PriorAlpha
	}
	if cfg.PriorBeta > 0 {
		p.PriorBeta = cfg.PriorBeta
	}
	if cfg.Seed > 0 {
		p.Seed = uint64(cfg.Seed)
	}
	return p
}

// DecisionHandler reads the aggregated conversion facts for an experiment
// and runs the decision engine over them. With refresh=1 it recomputes
// the facts synchronously first. The control arm is the first variant of
// the allocation, the treatment the second; allocation order is semantic.
func DecisionHandler(db *gorm.DB, reg *experiment.Registry, cfg *config.Config) fasthttp.RequestHandler {
	params := DecisionParams(cfg)

	return func(ctx *fasthttp.RequestCtx) {
		key := string(ctx.QueryArgs().Peek("experiment"))
		if key == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "experiment is required")
			return
		}

		exp, err := reg.Lookup(key)
		if experimentError(ctx, err) {
			return
		}
		if len(exp.Allocation) < 2 {
			errResponse(ctx, fasthttp.StatusUnprocessableEntity, "experiment has fewer than two variants")
			return
		}

		if string(ctx.QueryArgs().Peek("refresh")) == "1" {
			if err := dbpkg.RunAggregationFor(db, exp); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "aggregation failed")
				return
			}
		}

		facts, err := dbpkg.FactsFor(db, key)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load conversion facts")
			return
		}
		byVariant := make(map[string]dbpkg.ConversionFact, len(facts))
		for _, f := range facts {
			byVariant[f.Variant] = f
		}

		control, haveControl := byVariant[exp.Allocation[0].Variant]
		treatment, haveTreatment := byVariant[exp.Allocation[1].Variant]
		if !haveControl || !haveTreatment {
			errResponse(ctx, fasthttp.StatusUnprocessableEntity, "insufficient data for decision")
			return
		}

		in := stats.Input{
			A: stats.Counts{Exposed: control.ExposedUsers, Converted: control.ConvertedUsers, Guardrail: control.GuardrailUsers},
			B: stats.Counts{Exposed: treatment.ExposedUsers, Converted: treatment.ConvertedUsers, Guardrail: treatment.GuardrailUsers},
		}

		result, err := stats.Decide(in, params)
		if err != nil {
			// Zero-exposure rows. No recommendation is produced.
			errResponse(ctx, fasthttp.StatusUnprocessableEntity, err.Error())
			return
		}

		decisionsTotal.WithLabelValues(key, string(result.Recommendation)).Inc()

		jsonResponse(ctx, decisionResponse{
			ExperimentKey: key,
			Params:        params,
			Result:        result,
		})
	}
}

// ExperimentsHandler lists the loaded experiment descriptors.
func ExperimentsHandler(reg *experiment.Registry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		out := make([]map[string]any, 0)
		for _, e := range reg.All() {
			out = append(out, map[string]any{
				"key":                   e.Key,
				"name":                  e.Name,
				"enabled":               e.Enabled,
				"allocation":            e.Allocation,
				"targeting":             e.Targeting,
				"conversion_event":      e.ConversionEvent,
				"guardrail_event":       e.GuardrailEvent,
				"guardrail_window_days": e.GuardrailWindowDays,
			})
		}
		jsonResponse(ctx, map[string]any{"experiments": out})
	}
}
