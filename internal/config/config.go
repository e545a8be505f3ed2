package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ehr/careagent/internal/llm"
	"github.com/ehr/careagent/internal/pipeline"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	PipelineMode    string `mapstructure:"PIPELINE_MODE"`
	CodingTablePath string `mapstructure:"CODING_TABLE_PATH"`

	LLMProvider   string        `mapstructure:"LLM_PROVIDER"`
	LLMModel      string        `mapstructure:"LLM_MODEL"`
	LLMBaseURL    string        `mapstructure:"LLM_BASE_URL"`
	OpenAIAPIKey  string        `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey  string        `mapstructure:"GEMINI_API_KEY"`
	LLMTimeout    time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMMaxRetries int           `mapstructure:"LLM_MAX_RETRIES"`

	HITLDegradedMinTier  string `mapstructure:"HITL_DEGRADED_MIN_TIER"`
	HITLAbsentIsDegraded bool   `mapstructure:"HITL_ABSENT_IS_DEGRADED"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "PIPELINE_MODE", "CODING_TABLE_PATH",
	"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "OPENAI_API_KEY", "GEMINI_API_KEY",
	"LLM_TIMEOUT", "LLM_MAX_RETRIES",
	"HITL_DEGRADED_MIN_TIER", "HITL_ABSENT_IS_DEGRADED",
}

// Load reads configuration from the environment and an optional .env file.
// DATABASE_URL may be empty, in which case turns are kept in memory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("PIPELINE_MODE", pipeline.ModeExtended)
	v.SetDefault("LLM_PROVIDER", llm.ProviderNone)
	v.SetDefault("LLM_TIMEOUT", "10s")
	v.SetDefault("LLM_MAX_RETRIES", 1)
	v.SetDefault("HITL_DEGRADED_MIN_TIER", "moderate")
	v.SetDefault("HITL_ABSENT_IS_DEGRADED", true)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.PipelineMode != pipeline.ModeBase && c.PipelineMode != pipeline.ModeExtended {
		return fmt.Errorf("PIPELINE_MODE must be %q or %q, got %q", pipeline.ModeBase, pipeline.ModeExtended, c.PipelineMode)
	}
	if _, err := pipeline.ParseTier(c.HITLDegradedMinTier); err != nil {
		return fmt.Errorf("HITL_DEGRADED_MIN_TIER: %w", err)
	}

	switch c.LLMProvider {
	case "", llm.ProviderNone:
	case llm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.LLMBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is %q", c.LLMProvider)
		}
	case llm.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be none, openai or gemini, got %q", c.LLMProvider)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf(
			"AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set outside development (current ENV=%q)", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is for development only; use AUTH_JWKS_URL in production")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// HITLPolicy builds the review gate policy.
func (c *Config) HITLPolicy() (pipeline.Policy, error) {
	tier, err := pipeline.ParseTier(c.HITLDegradedMinTier)
	if err != nil {
		return pipeline.Policy{}, err
	}
	return pipeline.Policy{DegradedMinTier: tier, TreatAbsentAsDegraded: c.HITLAbsentIsDegraded}, nil
}

// LLM returns the adapter settings.
func (c *Config) LLM() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:     c.LLMProvider,
		Model:        c.LLMModel,
		BaseURL:      c.LLMBaseURL,
		OpenAIAPIKey: c.OpenAIAPIKey,
		GeminiAPIKey: c.GeminiAPIKey,
		Timeout:      c.LLMTimeout,
		MaxRetries:   c.LLMMaxRetries,
	}
}
