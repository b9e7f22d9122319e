// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, workflow policy, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "opportunity-engine")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WorkflowConfig defines orchestrator policy knobs.
type WorkflowConfig struct {
	Workers            int           // WORKFLOW_WORKERS
	QueueCapacity      int           // WORKFLOW_QUEUE_CAPACITY
	DailyQuota         int           // DAILY_ADMISSION_QUOTA (0 = unlimited)
	AutomationLevel    string        // AUTOMATION_LEVEL: full_auto|review_required
	AutoApproveQuality float64       // AUTO_APPROVE_QUALITY in [0,1]
	GenerationTimeout  time.Duration // GENERATION_TIMEOUT per attempt
	DefaultPlatform    string        // DEFAULT_PLATFORM
	RequeueInterval    time.Duration // REQUEUE_INTERVAL for quota-deferred work
}

// TrackerConfig defines the status tracker's sweep tuning.
type TrackerConfig struct {
	SweepInterval   time.Duration // SWEEP_INTERVAL
	NoResponseAfter time.Duration // NO_RESPONSE_AFTER
	Retention       time.Duration // RETENTION_WINDOW
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath             string // SQLite path
	PlatformsPath      string // platforms YAML
	ProfilesPath       string // profiles YAML
	GenerationEndpoint string // content generator URL ("" = disabled stub)

	Workflow WorkflowConfig
	Tracker  TrackerConfig

	// Rate limiting (inbound HTTP)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:             getenv("DB_PATH", "engine.db"),
		PlatformsPath:      getenv("PLATFORMS_PATH", "config/platforms.yaml"),
		ProfilesPath:       getenv("PROFILES_PATH", "config/profiles.yaml"),
		GenerationEndpoint: getenv("GENERATION_ENDPOINT", ""),

		Workflow: WorkflowConfig{
			Workers:            getint("WORKFLOW_WORKERS", 4),
			QueueCapacity:      getint("WORKFLOW_QUEUE_CAPACITY", 256),
			DailyQuota:         getint("DAILY_ADMISSION_QUOTA", 25),
			AutomationLevel:    strings.ToLower(getenv("AUTOMATION_LEVEL", "review_required")),
			AutoApproveQuality: getfloat("AUTO_APPROVE_QUALITY", 0.8),
			GenerationTimeout:  getdur("GENERATION_TIMEOUT", 120*time.Second),
			DefaultPlatform:    strings.ToLower(getenv("DEFAULT_PLATFORM", "email")),
			RequeueInterval:    getdur("REQUEUE_INTERVAL", time.Minute),
		},
		Tracker: TrackerConfig{
			SweepInterval:   getdur("SWEEP_INTERVAL", time.Hour),
			NoResponseAfter: getdur("NO_RESPONSE_AFTER", 30*24*time.Hour),
			Retention:       getdur("RETENTION_WINDOW", 90*24*time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "opportunity-engine"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.PlatformsPath) == "" {
		return cfg, errors.New("PLATFORMS_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.ProfilesPath) == "" {
		return cfg, errors.New("PROFILES_PATH must not be empty")
	}
	if cfg.Workflow.Workers < 1 {
		return cfg, errors.New("WORKFLOW_WORKERS must be >= 1")
	}
	if cfg.Workflow.QueueCapacity < 1 {
		return cfg, errors.New("WORKFLOW_QUEUE_CAPACITY must be >= 1")
	}
	if cfg.Workflow.DailyQuota < 0 {
		return cfg, errors.New("DAILY_ADMISSION_QUOTA must be >= 0")
	}
	switch cfg.Workflow.AutomationLevel {
	case "full_auto", "review_required":
	default:
		return cfg, errors.New("AUTOMATION_LEVEL must be full_auto or review_required")
	}
	if cfg.Workflow.AutoApproveQuality < 0 || cfg.Workflow.AutoApproveQuality > 1 {
		return cfg, errors.New("AUTO_APPROVE_QUALITY must be between 0 and 1")
	}
	if cfg.Workflow.GenerationTimeout <= 0 {
		return cfg, errors.New("GENERATION_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Workflow.DefaultPlatform) == "" {
		return cfg, errors.New("DEFAULT_PLATFORM must not be empty")
	}
	if cfg.Workflow.RequeueInterval <= 0 {
		return cfg, errors.New("REQUEUE_INTERVAL must be > 0")
	}
	if cfg.Tracker.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be > 0")
	}
	if cfg.Tracker.NoResponseAfter <= 0 {
		return cfg, errors.New("NO_RESPONSE_AFTER must be > 0")
	}
	if cfg.Tracker.Retention <= 0 {
		return cfg, errors.New("RETENTION_WINDOW must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
