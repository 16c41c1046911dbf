// Package embedding implements the embedding pipeline (C11): turning root-
// aggregate text into vectors and keeping the vector store in sync with the
// graph via a non-polling, edge-triggered processor.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ProviderKind identifies which backend a Config talks to. Mirrors the two
// backends the rest of this module's batch-completion tooling already
// supports, re-pointed at embedding endpoints instead of chat completions.
type ProviderKind string

const (
	ProviderGoogle     ProviderKind = "google"
	ProviderOpenRouter ProviderKind = "openrouter"
)

// Config holds embedding provider settings.
type Config struct {
	Provider         ProviderKind
	GoogleAPIKey     string
	GoogleModel      string
	OpenRouterAPIKey string
	OpenRouterModel  string
}

// Provider turns text into a vector. Implementations must be safe for
// concurrent use by the processor's claim loop.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewProvider dispatches Config to a concrete Provider the same way the
// batch completion service dispatches on its Provider field.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderGoogle:
		if cfg.GoogleAPIKey == "" || cfg.GoogleModel == "" {
			return nil, errors.New("embedding: google provider requires an API key and model")
		}
		return &googleProvider{apiKey: cfg.GoogleAPIKey, model: cfg.GoogleModel}, nil
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" || cfg.OpenRouterModel == "" {
			return nil, errors.New("embedding: openrouter provider requires an API key and model")
		}
		return &openRouterProvider{apiKey: cfg.OpenRouterAPIKey, model: cfg.OpenRouterModel}, nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
