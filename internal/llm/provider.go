package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Provider names accepted by New.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider     string
	Model        string
	BaseURL      string
	OpenAIAPIKey string
	GeminiAPIKey string
	Temperature  float32
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// New builds the configured backend wrapped with timeout, logging and retry.
// An empty or "none" provider yields None.
func New(ctx context.Context, cfg ProviderConfig, logger zerolog.Logger) (Adapter, error) {
	var base Adapter
	switch cfg.Provider {
	case "", ProviderNone:
		return None, nil
	case ProviderOpenAI:
		a, err := NewOpenAI(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		base = a
	case ProviderGemini:
		a, err := NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		base = a
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	return Wrap(base,
		Timeout(cfg.Timeout),
		WithLogging(logger),
		Retry(cfg.MaxRetries, delay),
	), nil
}
