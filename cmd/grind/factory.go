package main

import (
	"fmt"

	"github.com/grindloop/grind/internal/config"
	"github.com/grindloop/grind/internal/model"
	"github.com/grindloop/grind/internal/session"
)

// buildCatalog returns the model catalog, with the user's override file
// applied when one is configured.
func buildCatalog(cfg *config.Config) (*model.Catalog, error) {
	catalog := model.NewCatalog()
	if cfg.Models.Catalog != "" {
		if err := catalog.LoadOverrides(cfg.Models.Catalog); err != nil {
			return nil, fmt.Errorf("load model catalog %s: %w", cfg.Models.Catalog, err)
		}
	}
	return catalog, nil
}

// buildRegistry wires the catalog to the provider session factories.
// Bare model ids resolve to bedrock when aws.use_bedrock is set.
func buildRegistry(cfg *config.Config) (*model.Registry, error) {
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	defaultProvider := model.ProviderAnthropic
	if cfg.AWS.UseBedrock {
		defaultProvider = model.ProviderBedrock
	}

	registry := model.NewRegistry(catalog, defaultProvider)
	registry.Register(model.ProviderAnthropic, session.FormatAnthropicMessages, sessionFactory(cfg, false))
	registry.Register(model.ProviderBedrock, session.FormatAnthropicMessages, sessionFactory(cfg, true))
	return registry, nil
}

// sessionFactory builds sessions for one provider. The same factory
// serves the initial session and mid-run model switches.
func sessionFactory(cfg *config.Config, bedrock bool) model.Factory {
	return func(info model.ModelInfo, carry *session.Transcript, priorSpend float64) (session.Session, error) {
		sc := session.Config{
			ModelID:           info.ID,
			APIKey:            cfg.Anthropic.APIKey,
			UseBedrock:        bedrock,
			AWSRegion:         cfg.AWS.Region,
			AWSProfile:        cfg.AWS.Profile,
			Autonomous:        cfg.Defaults.Autonomous,
			ContextWindow:     info.ContextWindow,
			Pricing:           session.Pricing{InputPerMillion: info.InputPerMillion, OutputPerMillion: info.OutputPerMillion},
			StrategyName:      cfg.Loop.CompactStrategy,
			KeepPairs:         cfg.Loop.KeepPairs,
			PriorSpend:        priorSpend,
			InitialTranscript: carry,
		}
		if bedrock {
			sc.APIModel = info.BedrockID
		}
		return session.NewAnthropic(sc)
	}
}

// createSession resolves spec and constructs the run's first session.
// priorSpend is non-zero when resuming an interrupted run.
func createSession(cfg *config.Config, registry *model.Registry, spec string, priorSpend float64) (session.Session, model.Ref, error) {
	ref, err := registry.Resolve(spec)
	if err != nil {
		return nil, model.Ref{}, err
	}
	factory := sessionFactory(cfg, ref.Provider == model.ProviderBedrock)
	sess, err := factory(ref.Info, nil, priorSpend)
	if err != nil {
		return nil, model.Ref{}, err
	}
	return sess, ref, nil
}
