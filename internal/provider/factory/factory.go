package factory

import (
	"errors"
	"fmt"

	"neural-how/internal/config"
	"neural-how/internal/provider"
	openaiProvider "neural-how/internal/provider/openai"
	textsynthProvider "neural-how/internal/provider/textsynth"
)

// RegisterConfiguredProviders constructs both adapters and stores them in the registry.
func RegisterConfiguredProviders(cfg config.ProvidersConfig, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	openAIAdapter, err := openaiProvider.New(cfg.OpenAI.BaseURL)
	if err != nil {
		return fmt.Errorf("initialise openai provider: %w", err)
	}
	if err := registry.Register(openAIAdapter); err != nil {
		return fmt.Errorf("register openai provider: %w", err)
	}

	textSynthAdapter, err := textsynthProvider.New(cfg.TextSynth.BaseURL)
	if err != nil {
		return fmt.Errorf("initialise textsynth provider: %w", err)
	}
	if err := registry.Register(textSynthAdapter); err != nil {
		return fmt.Errorf("register textsynth provider: %w", err)
	}

	return nil
}

// NewRegistry returns a registry holding both adapters.
func NewRegistry(cfg config.ProvidersConfig) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	if err := RegisterConfiguredProviders(cfg, registry); err != nil {
		return nil, err
	}
	return registry, nil
}
