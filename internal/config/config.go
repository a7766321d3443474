package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	// OperatorUser / OperatorPassword are the bootstrap credentials for
	// the ops-facing endpoints (decision, recent events). The password is
	// stored bcrypt-hashed in the operators table on startup.
	OperatorUser     string
	OperatorPassword string

	DatabaseURL string

	ListenAddr string

	// ExperimentsFile is the path of the experiment descriptor file
	// loaded once at startup.
	ExperimentsFile string

	// ServiceAPIKey, if set, is ensured as an active service key on
	// startup so traffic generators and SDKs can authenticate without a
	// manual provisioning step.
	ServiceAPIKey string

	// AggregationMinutes is the interval between conversion-fact
	// aggregation passes.
	AggregationMinutes int

	// Decision engine knobs. Zero values mean "engine default".
	ROPE           float64
	DecisionProb   float64
	GuardrailDelta float64
	PriorAlpha     float64
	PriorBeta      float64
	Seed           int64
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		OperatorUser:       getenv("APP_OPERATOR_USER", "operator"),
		OperatorPassword:   getenv("APP_OPERATOR_PASSWORD", "changeme"),
		DatabaseURL:        os.Getenv("APP_DATABASE_URL"),
		ListenAddr:         getenv("APP_LISTEN_ADDR", ":8080"),
		ExperimentsFile:    getenv("APP_EXPERIMENTS_FILE", "experiments.yaml"),
		ServiceAPIKey:      getenv("APP_SERVICE_API_KEY", ""),
		AggregationMinutes: 10,
		ROPE:               getfloat("APP_ROPE", 0),
		DecisionProb:       getfloat("APP_DECISION_PR", 0),
		GuardrailDelta:     getfloat("APP_GUARDRAIL_DELTA", 0),
		PriorAlpha:         getfloat("APP_BETA_ALPHA", 0),
		PriorBeta:          getfloat("APP_BETA_BETA", 0),
	}

	if v := os.Getenv("APP_AGGREGATION_MINUTES"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m > 0 {
			cfg.AggregationMinutes = m
		}
	}
	if v := os.Getenv("APP_DECISION_SEED"); v != "" {
		if s, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = s
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
