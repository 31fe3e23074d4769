// Package config holds the single top-level Config struct the rest of the
// module is constructed from. There is exactly one place environment
// variables are read for secrets; everything else flows through this struct.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// maxConfigFileBytes guards against accidentally loading something that
// isn't a config file (or a hostile oversized one).
const maxConfigFileBytes = 1 << 20 // 1MiB

// Config is constructed once at startup and threaded through every
// component by value or pointer; nothing reads os.Getenv after LoadConfig
// returns.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Risk      RiskConfig      `yaml:"risk"`
	Epistemic EpistemicConfig `yaml:"epistemic"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Planner   PlannerConfig   `yaml:"planner"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LLM       LLMConfig       `yaml:"llm"`
	Memory    MemoryConfig    `yaml:"memory"`
}

// RegistryConfig configures the Capability Registry's shadow-run governance.
type RegistryConfig struct {
	MaxShadowActive          int           `yaml:"max_shadow_active"`
	CircuitBreakerThreshold  int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldown   time.Duration `yaml:"circuit_breaker_cooldown"`
	QuotaMaxTokens           int           `yaml:"quota_max_tokens"`
	QuotaResetInterval       time.Duration `yaml:"quota_reset_interval"`
	MinShadowRuns            int           `yaml:"min_shadow_runs"`
	SuccessThreshold         float64       `yaml:"success_threshold"`
	MaxShadowRuns            int           `yaml:"max_shadow_runs"`
	FailureThreshold         float64       `yaml:"failure_threshold"`
	QuotaBackend             string        `yaml:"quota_backend"` // "memory" or "redis"
	RedisAddr                string        `yaml:"redis_addr"`
}

// RiskConfig configures the risk-aware scenario planner.
type RiskConfig struct {
	MaxScenarioNodes     int `yaml:"max_scenario_nodes"`
	MaxScenarioDepth     int `yaml:"max_scenario_depth"`
	MaxOutcomesPerAction int `yaml:"max_outcomes_per_action"`
}

// EpistemicConfig configures the belief-state planner.
type EpistemicConfig struct {
	MaxHypotheses       int     `yaml:"max_hypotheses"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// TasksConfig configures the autonomous executor's task block policy.
type TasksConfig struct {
	DefaultTTL          time.Duration `yaml:"default_ttl"`
	GoalKeyStaleWindow  time.Duration `yaml:"goal_key_stale_window"`
	TTLSweepInterval    time.Duration `yaml:"ttl_sweep_interval"`
}

// PlannerConfig configures the HTN/reactive sub-planner budgets.
type PlannerConfig struct {
	HTNBudget             time.Duration `yaml:"htn_budget"`
	ReactiveBudget        time.Duration `yaml:"reactive_budget"`
	ReactiveMaxPlanLength int           `yaml:"reactive_max_plan_length"`
}

// AuditConfig selects and configures the append-only audit backend.
type AuditConfig struct {
	Backend             string `yaml:"backend"` // "file" or "firestore"
	FilePath            string `yaml:"file_path"`
	FirestoreProject    string `yaml:"firestore_project"`
	FirestoreCollection string `yaml:"firestore_collection"`
}

// TelemetryConfig configures OpenTelemetry tracing export.
type TelemetryConfig struct {
	ServiceName  string            `yaml:"service_name"`
	Enabled      bool              `yaml:"enabled"`
	ExporterType string            `yaml:"exporter_type"` // "otlp", "stdout", "none"
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	OTLPHeaders  map[string]string `yaml:"otlp_headers"`
}

// LLMConfig configures the external LLM client collaborator.
type LLMConfig struct {
	Provider         string        `yaml:"provider"` // "openai"
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	PlanningTimeout  time.Duration `yaml:"planning_timeout"`
	MaxSuggestions   int           `yaml:"max_suggestions"`
}

// MemoryConfig configures the best-effort memory-service collaborator.
type MemoryConfig struct {
	BaseURL             string        `yaml:"base_url"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	MaxRetries          int           `yaml:"max_retries"`
	CircuitThreshold    int           `yaml:"circuit_threshold"`
	CircuitCooldown     time.Duration `yaml:"circuit_cooldown"`
}

// LoadConfig loads configuration from a YAML file, applying defaults and
// environment-variable fallback for secrets.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvFallback(&cfg)

	return &cfg, nil
}

// applyDefaults fills zero-valued fields with the built-in defaults.
func applyDefaults(cfg *Config) {
	r := &cfg.Registry
	if r.MaxShadowActive == 0 {
		r.MaxShadowActive = 10
	}
	if r.CircuitBreakerThreshold == 0 {
		r.CircuitBreakerThreshold = 3
	}
	if r.CircuitBreakerCooldown == 0 {
		r.CircuitBreakerCooldown = 5 * time.Minute
	}
	if r.QuotaMaxTokens == 0 {
		r.QuotaMaxTokens = 60
	}
	if r.QuotaResetInterval == 0 {
		r.QuotaResetInterval = 60 * time.Second
	}
	if r.MinShadowRuns == 0 {
		r.MinShadowRuns = 10
	}
	if r.SuccessThreshold == 0 {
		r.SuccessThreshold = 0.8
	}
	if r.MaxShadowRuns == 0 {
		r.MaxShadowRuns = 50
	}
	if r.FailureThreshold == 0 {
		r.FailureThreshold = 0.3
	}
	if r.QuotaBackend == "" {
		r.QuotaBackend = "memory"
	}

	p10 := &cfg.Risk
	if p10.MaxScenarioNodes == 0 {
		p10.MaxScenarioNodes = 300
	}
	if p10.MaxScenarioDepth == 0 {
		p10.MaxScenarioDepth = 50
	}
	if p10.MaxOutcomesPerAction == 0 {
		p10.MaxOutcomesPerAction = 5
	}

	p11 := &cfg.Epistemic
	if p11.MaxHypotheses == 0 {
		p11.MaxHypotheses = 32
	}
	if p11.ConfidenceThreshold == 0 {
		p11.ConfidenceThreshold = 0.8
	}

	t := &cfg.Tasks
	if t.DefaultTTL == 0 {
		t.DefaultTTL = 2 * time.Minute
	}
	if t.GoalKeyStaleWindow == 0 {
		t.GoalKeyStaleWindow = 5 * time.Minute
	}
	if t.TTLSweepInterval == 0 {
		t.TTLSweepInterval = 15 * time.Second
	}

	pl := &cfg.Planner
	if pl.HTNBudget == 0 {
		pl.HTNBudget = 50 * time.Millisecond
	}
	if pl.ReactiveBudget == 0 {
		pl.ReactiveBudget = 20 * time.Millisecond
	}
	if pl.ReactiveMaxPlanLength == 0 {
		pl.ReactiveMaxPlanLength = 10
	}

	a := &cfg.Audit
	if a.Backend == "" {
		a.Backend = "file"
	}
	if a.FilePath == "" {
		a.FilePath = "wayfinder-audit.log"
	}
	if a.FirestoreCollection == "" {
		a.FirestoreCollection = "wayfinder-audit"
	}

	tel := &cfg.Telemetry
	if tel.ServiceName == "" {
		tel.ServiceName = "wayfinder"
	}
	if tel.ExporterType == "" {
		tel.ExporterType = "none"
	}

	l := &cfg.LLM
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.ExecutionTimeout == 0 {
		l.ExecutionTimeout = 5 * time.Second
	}
	if l.PlanningTimeout == 0 {
		l.PlanningTimeout = 40 * time.Second
	}
	if l.MaxSuggestions == 0 {
		l.MaxSuggestions = 3
	}

	m := &cfg.Memory
	if m.RequestTimeout == 0 {
		m.RequestTimeout = 3 * time.Second
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = 3
	}
	if m.CircuitThreshold == 0 {
		m.CircuitThreshold = 3
	}
	if m.CircuitCooldown == 0 {
		m.CircuitCooldown = 30 * time.Second
	}
}

// applyEnvFallback fills secrets from the environment when not set in the file.
func applyEnvFallback(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Audit.FirestoreProject == "" {
		cfg.Audit.FirestoreProject = os.Getenv("GCP_PROJECT")
	}
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.Registry.SuccessThreshold <= c.Registry.FailureThreshold {
		return fmt.Errorf("registry.success_threshold must exceed registry.failure_threshold")
	}
	if c.Registry.MaxShadowRuns < c.Registry.MinShadowRuns {
		return fmt.Errorf("registry.max_shadow_runs must be >= registry.min_shadow_runs")
	}
	if c.Epistemic.MaxHypotheses <= 0 {
		return fmt.Errorf("epistemic.max_hypotheses must be positive")
	}
	if c.Planner.ReactiveMaxPlanLength <= 0 {
		return fmt.Errorf("planner.reactive_max_plan_length must be positive")
	}
	return nil
}

// Default returns a Config populated entirely with built-in defaults.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}
