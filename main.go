package main

import (
	"log"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"ablab/internal/config"
	"ablab/internal/db"
	"ablab/internal/http/handlers"
	appmw "ablab/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	experiments, err := config.LoadExperiments(cfg.ExperimentsFile)
	if err != nil {
		log.Fatalf("failed to load experiments: %v", err)
	}

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapOperator(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap operator: %v", err)
	}

	if cfg.ServiceAPIKey != "" {
		if err := db.EnsureBootstrapServiceKey(sqlDB, cfg); err != nil {
			log.Printf("warning: failed to ensure bootstrap service key: %v", err)
		} else {
			log.Printf("bootstrap service key configured")
		}
	}

	db.StartAggregationWorker(sqlDB, experiments, time.Duration(cfg.AggregationMinutes)*time.Minute)

	handlers.InitPrometheusMetrics()

	r := router.New()

	handler := handlers.RequestLogger(r.Handler)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.GET("/v1/assign", appmw.BearerAuth(sqlDB)(handlers.AssignHandler(sqlDB, experiments)))
	r.POST("/v1/events", appmw.BearerAuth(sqlDB)(handlers.RecordEventHandler(sqlDB)))

	r.GET("/v1/metrics", handlers.ExperimentMetricsHandler(sqlDB))

	r.GET("/v1/decision", appmw.OperatorAuth(sqlDB)(handlers.DecisionHandler(sqlDB, experiments, cfg)))
	r.GET("/v1/events/recent", appmw.OperatorAuth(sqlDB)(handlers.RecentEvents(sqlDB)))
	r.GET("/v1/experiments", appmw.OperatorAuth(sqlDB)(handlers.ExperimentsHandler(experiments)))

	log.Printf("ablab listening on %s (%d experiments loaded)", cfg.ListenAddr, len(experiments.All()))
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
