package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Events     EventsConfig     `yaml:"events"`
	Context    ContextConfig    `yaml:"context"`
	Learning   LearningConfig   `yaml:"learning"`
	Outcome    OutcomeConfig    `yaml:"outcome"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

// ContextConfig names the ordered situational attributes that form the
// weight-learning bucket key.
type ContextConfig struct {
	Schema []string `yaml:"schema"`
}

// LearningConfig holds the staged blend-ratio schedule and cache tuning.
// Stage boundaries are example counts; caps are the blend ratio reached
// at the end of each stage.
type LearningConfig struct {
	BootstrapExamples  int     `yaml:"bootstrap_examples"`
	InitialExamples    int     `yaml:"initial_examples"`
	TransitionExamples int     `yaml:"transition_examples"`
	MatureExamples     int     `yaml:"mature_examples"`
	InitialCap         float64 `yaml:"initial_cap"`
	TransitionCap      float64 `yaml:"transition_cap"`
	UnvalidatedCap     float64 `yaml:"unvalidated_cap"`
	BaseLearningRate   float64 `yaml:"base_learning_rate"`
	RateHalfLife       int     `yaml:"rate_half_life"`
	MinLearningRate    float64 `yaml:"min_learning_rate"`
	MaxWeight          float64 `yaml:"max_weight"`
	WeightsTTLSeconds  int     `yaml:"weights_ttl_seconds"`
	BackendTimeoutMs   int     `yaml:"backend_timeout_ms"`
}

type OutcomeConfig struct {
	PredictionTTLHours int     `yaml:"prediction_ttl_hours"`
	CorrectThreshold   float64 `yaml:"correct_threshold"`
	AuditPredictions   bool    `yaml:"audit_predictions"`
	SampleWindowHours  int     `yaml:"sample_window_hours"`
	CompactIntervalMin int     `yaml:"compact_interval_min"`
}

type ValidationConfig struct {
	MinExamples         int     `yaml:"min_examples"`
	MinSamplesPerArm    int     `yaml:"min_samples_per_arm"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MinImprovement      float64 `yaml:"min_improvement"`
	SweepIntervalMin    int     `yaml:"sweep_interval_min"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) WeightsTTL() time.Duration {
	return time.Duration(c.Learning.WeightsTTLSeconds) * time.Second
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Learning.BackendTimeoutMs) * time.Millisecond
}

func (c *Config) PredictionTTL() time.Duration {
	return time.Duration(c.Outcome.PredictionTTLHours) * time.Hour
}

func (c *Config) SampleWindow() time.Duration {
	return time.Duration(c.Outcome.SampleWindowHours) * time.Hour
}

func (c *Config) CompactInterval() time.Duration {
	return time.Duration(c.Outcome.CompactIntervalMin) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Validation.SweepIntervalMin) * time.Minute
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Context: ContextConfig{
			Schema: []string{"industry", "deal_size", "stage"},
		},
		Learning: LearningConfig{
			BootstrapExamples:  100,
			InitialExamples:    500,
			TransitionExamples: 1000,
			MatureExamples:     2000,
			InitialCap:         0.5,
			TransitionCap:      0.9,
			UnvalidatedCap:     0.9,
			BaseLearningRate:   0.1,
			RateHalfLife:       100,
			MinLearningRate:    0.01,
			MaxWeight:          2.0,
			WeightsTTLSeconds:  120,
			BackendTimeoutMs:   800,
		},
		Outcome: OutcomeConfig{
			PredictionTTLHours: 6,
			CorrectThreshold:   0.5,
			AuditPredictions:   true,
			SampleWindowHours:  720,
			CompactIntervalMin: 60,
		},
		Validation: ValidationConfig{
			MinExamples:         150,
			MinSamplesPerArm:    30,
			ConfidenceThreshold: 0.95,
			MinImprovement:      0.0,
			SweepIntervalMin:    30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	l := cfg.Learning
	if !(l.BootstrapExamples < l.InitialExamples && l.InitialExamples < l.TransitionExamples && l.TransitionExamples < l.MatureExamples) {
		return fmt.Errorf("learning stage boundaries must be strictly increasing: %d/%d/%d/%d",
			l.BootstrapExamples, l.InitialExamples, l.TransitionExamples, l.MatureExamples)
	}
	if l.InitialCap < 0 || l.InitialCap > l.TransitionCap || l.TransitionCap > 1.0 {
		return fmt.Errorf("learning caps must satisfy 0 <= initial (%f) <= transition (%f) <= 1.0",
			l.InitialCap, l.TransitionCap)
	}
	if len(cfg.Context.Schema) == 0 {
		return fmt.Errorf("context schema must name at least one attribute")
	}
	v := cfg.Validation
	if v.ConfidenceThreshold <= 0.5 || v.ConfidenceThreshold >= 1.0 {
		return fmt.Errorf("validation confidence threshold must be in (0.5, 1.0), got %f", v.ConfidenceThreshold)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CALIPER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("CALIPER_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("CALIPER_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("CALIPER_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CALIPER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CALIPER_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CALIPER_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("CALIPER_CONTEXT_SCHEMA"); v != "" {
		var schema []string
		for _, attr := range strings.Split(v, ",") {
			if attr = strings.TrimSpace(attr); attr != "" {
				schema = append(schema, attr)
			}
		}
		if len(schema) > 0 {
			cfg.Context.Schema = schema
		}
	}
	if v := os.Getenv("CALIPER_MIN_VALIDATION_EXAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Validation.MinExamples = n
		}
	}
	if v := os.Getenv("CALIPER_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Validation.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("CALIPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
