package handlers

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "ablab/internal/db"
)

var (
	assignmentsTotal *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
)

func InitPrometheusMetrics() {
	assignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ablab",
			Name:      "assignments_total",
			Help:      "Total number of newly created variant assignments.",
		},
		[]string{"experiment", "variant"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ablab",
			Name:      "events_total",
			Help:      "Total number of recorded behavioral events.",
		},
		[]string{"experiment", "variant", "event_type"},
	)
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ablab",
			Name:      "decisions_total",
			Help:      "Total number of decision engine runs by recommendation.",
		},
		[]string{"experiment", "recommendation"},
	)
	prometheus.MustRegister(assignmentsTotal, eventsTotal, decisionsTotal)
}

// ExperimentMetricsHandler exposes the registered metrics filtered down
// to one experiment's label values, so a caller holding a service key can
// scrape only the experiment it runs traffic for. Metric families without
// an experiment label pass through unfiltered.
func ExperimentMetricsHandler(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKeyValue := string(ctx.QueryArgs().Peek("api-key"))
		if apiKeyValue == "" {
			errResponse(ctx, fasthttp.StatusUnauthorized, "missing api-key query parameter")
			return
		}

		var key dbpkg.ServiceKey
		if err := db.Where("key = ? AND active = ?", apiKeyValue, true).First(&key).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				errResponse(ctx, fasthttp.StatusUnauthorized, "invalid service key")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		experimentKey := string(ctx.QueryArgs().Peek("experiment"))
		if experimentKey == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "experiment is required")
			return
		}

		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to gather metrics")
			return
		}

		filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			hasExperimentLabel := false
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "experiment" {
						hasExperimentLabel = true
						break
					}
				}
				if hasExperimentLabel {
					break
				}
			}

			if !hasExperimentLabel {
				filtered = append(filtered, mf)
				continue
			}

			var kept []*dto.Metric
			for _, m := range mf.GetMetric() {
				include := false
				for _, l := range m.GetLabel() {
					if l.GetName() == "experiment" && l.GetValue() == experimentKey {
						include = true
						break
					}
				}
				if include {
					kept = append(kept, m)
				}
			}

			if len(kept) == 0 {
				continue
			}

			filtered = append(filtered, &dto.MetricFamily{
				Name:   mf.Name,
				Help:   mf.Help,
				Type:   mf.Type,
				Metric: kept,
			})
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
