package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird")    // normalizes to release
	t.Setenv("LOG_LEVEL", "warning") // normalizes to warn
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("DB_PATH", "engine-test.db")
	t.Setenv("DAILY_ADMISSION_QUOTA", "5")
	t.Setenv("AUTOMATION_LEVEL", "FULL_AUTO")
	t.Setenv("AUTO_APPROVE_QUALITY", "0.9")
	t.Setenv("GENERATION_TIMEOUT", "30s")
	t.Setenv("REQUEUE_INTERVAL", "30s")
	t.Setenv("SWEEP_INTERVAL", "10m")
	t.Setenv("RATE_RPS", "x")      // bad parse -> default 5.0
	t.Setenv("RATE_BURST", "nope") // bad parse -> default 10
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging fields: %+v", cfg)
	}
	if cfg.DBPath != "engine-test.db" {
		t.Fatalf("db path: %q", cfg.DBPath)
	}
	if cfg.Workflow.DailyQuota != 5 ||
		cfg.Workflow.AutomationLevel != "full_auto" ||
		cfg.Workflow.AutoApproveQuality != 0.9 ||
		cfg.Workflow.GenerationTimeout != 30*time.Second ||
		cfg.Workflow.RequeueInterval != 30*time.Second {
		t.Fatalf("workflow fields: %+v", cfg.Workflow)
	}
	if cfg.Tracker.SweepInterval != 10*time.Minute {
		t.Fatalf("tracker fields: %+v", cfg.Tracker)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate fields fell through defaults: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.SampleRatio != 0.25 {
		t.Fatalf("otel fields: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT"},
		{"zero timeout", map[string]string{"WRITE_TIMEOUT": "0s"}, "timeouts"},
		{"zero header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"blank db path", map[string]string{"DB_PATH": "  "}, "DB_PATH"},
		{"blank platforms path", map[string]string{"PLATFORMS_PATH": "  "}, "PLATFORMS_PATH"},
		{"blank profiles path", map[string]string{"PROFILES_PATH": "  "}, "PROFILES_PATH"},
		{"zero workers", map[string]string{"WORKFLOW_WORKERS": "0"}, "WORKFLOW_WORKERS"},
		{"zero queue", map[string]string{"WORKFLOW_QUEUE_CAPACITY": "0"}, "WORKFLOW_QUEUE_CAPACITY"},
		{"negative quota", map[string]string{"DAILY_ADMISSION_QUOTA": "-1"}, "DAILY_ADMISSION_QUOTA"},
		{"bogus automation level", map[string]string{"AUTOMATION_LEVEL": "yolo"}, "AUTOMATION_LEVEL"},
		{"quality out of range", map[string]string{"AUTO_APPROVE_QUALITY": "1.5"}, "AUTO_APPROVE_QUALITY"},
		{"zero generation timeout", map[string]string{"GENERATION_TIMEOUT": "0s"}, "GENERATION_TIMEOUT"},
		{"zero requeue interval", map[string]string{"REQUEUE_INTERVAL": "0s"}, "REQUEUE_INTERVAL"},
		{"zero sweep interval", map[string]string{"SWEEP_INTERVAL": "0s"}, "SWEEP_INTERVAL"},
		{"zero no-response window", map[string]string{"NO_RESPONSE_AFTER": "0s"}, "NO_RESPONSE_AFTER"},
		{"zero retention", map[string]string{"RETENTION_WINDOW": "0s"}, "RETENTION_WINDOW"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"negative hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"sampler out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "2"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestHelpers_ParsingFallbacks(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatal("getenv should fall back on empty")
	}

	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.25) != 1.25 {
		t.Fatal("getfloat should fall back on bad parse")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatal("getint should fall back on bad parse")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatal("getdur parse failed")
	}

	t.Setenv("B_ON", " On ")
	t.Setenv("B_OFF", "off")
	if !getbool("B_ON", false) || getbool("B_OFF", true) {
		t.Fatal("getbool truthy parsing failed")
	}
	t.Setenv("B_JUNK", "sometimes")
	if !getbool("B_JUNK", true) {
		t.Fatal("getbool should keep default on unrecognized value")
	}
}

func TestSplitCSVAndNormalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV(\"\") = %#v", out)
	}
	if got := splitCSV(" a, ,b ,c,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}

	for in, want := range map[string]string{
		"":       "/",
		"v1":     "/v1",
		"/v1/":   "/v1",
		" /api ": "/api",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
