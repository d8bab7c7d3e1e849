// Package app wires configuration, the settings resolver, the provider
// registry, provider adapters, the dispatcher and the HTTP handlers into
// one dependency container.
package app

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/upb/llm-dispatch/config"
	"github.com/upb/llm-dispatch/handlers"
	"github.com/upb/llm-dispatch/middleware"
	"github.com/upb/llm-dispatch/services/dispatch"
	"github.com/upb/llm-dispatch/services/providers"
	"github.com/upb/llm-dispatch/services/providers/anthropic"
	"github.com/upb/llm-dispatch/services/providers/fallback"
	"github.com/upb/llm-dispatch/services/providers/openai"
	"github.com/upb/llm-dispatch/services/settings"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Resolver *settings.Resolver
	Secrets  *settings.SecretStore
	Registry *providers.Registry

	Dispatcher *dispatch.Dispatcher

	// Handlers
	DispatchHandler *handlers.DispatchHandler
	ProviderHandler *handlers.ProviderHandler
	SettingsHandler *handlers.SettingsHandler
	HealthHandler   *handlers.HealthHandler

	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initResolver(cfg)
	deps.Secrets = settings.NewSecretStore()
	if cfg.AgentSettingsDir != "" {
		if err := deps.loadAgentSettings(cfg.AgentSettingsDir); err != nil {
			return nil, fmt.Errorf("failed to load agent settings: %w", err)
		}
	}
	deps.Registry = providers.NewRegistry()

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initDispatcher(cfg)
	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initResolver seeds the settings resolver's built-in defaults from the
// fallback configuration. Environment and agent settings override these
// at resolve time.
func (d *Dependencies) initResolver(cfg *config.Config) {
	d.Resolver = settings.NewResolver(
		settings.WithDefault(settings.KeyFallbackEnabled, strconv.FormatBool(cfg.Fallback.Enabled)),
		settings.WithDefault(settings.KeyFallbackBaseURL, cfg.Fallback.BaseURL),
		settings.WithDefault(settings.KeyFallbackAPIKey, cfg.Fallback.APIKey),
		settings.WithDefault(settings.KeyFallbackTimeoutMS, strconv.FormatInt(cfg.Fallback.Timeout.Milliseconds(), 10)),
	)
}

// loadAgentSettings loads every <agentID>.yaml file in dir into the
// resolver's persistent settings layer, and every <agentID>.secrets.yaml
// file into the secrets layer.
func (d *Dependencies) loadAgentSettings(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}

	for _, path := range paths {
		base := filepath.Base(path)
		if strings.HasSuffix(base, ".secrets.yaml") {
			agentID := strings.TrimSuffix(base, ".secrets.yaml")
			if err := d.Secrets.LoadAgentFile(agentID, path); err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			continue
		}
		agentID := strings.TrimSuffix(base, ".yaml")
		if err := d.Resolver.LoadAgentFile(agentID, path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	d.Logger.Info("agent settings loaded",
		zap.String("dir", dir),
		zap.Int("files", len(paths)))
	return nil
}

// initProviders registers the configured adapters. Primary providers come
// first by priority; the fallback adapter always registers so that the
// secondary path exists even when no primary key is configured.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	if cfg.Providers.OpenAI.APIKey != "" {
		adapter := openai.New(func(o *openai.Options) {
			o.APIKey = cfg.Providers.OpenAI.APIKey
			o.BaseURL = cfg.Providers.OpenAI.BaseURL
			if cfg.Providers.OpenAI.SmallModel != "" {
				o.SmallModel = cfg.Providers.OpenAI.SmallModel
			}
			if cfg.Providers.OpenAI.LargeModel != "" {
				o.LargeModel = cfg.Providers.OpenAI.LargeModel
			}
		})
		if err := adapter.Register(d.Registry, cfg.Providers.OpenAI.Priority); err != nil {
			return fmt.Errorf("register openai: %w", err)
		}
		d.Logger.Info("openai provider registered",
			zap.Int("priority", cfg.Providers.OpenAI.Priority))
	}

	if cfg.Providers.Anthropic.APIKey != "" {
		adapter := anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.Providers.Anthropic.APIKey
			o.BaseURL = cfg.Providers.Anthropic.BaseURL
			if cfg.Providers.Anthropic.SmallModel != "" {
				o.SmallModel = anthropicsdk.Model(cfg.Providers.Anthropic.SmallModel)
			}
			if cfg.Providers.Anthropic.LargeModel != "" {
				o.LargeModel = anthropicsdk.Model(cfg.Providers.Anthropic.LargeModel)
			}
		})
		if err := adapter.Register(d.Registry, cfg.Providers.Anthropic.Priority); err != nil {
			return fmt.Errorf("register anthropic: %w", err)
		}
		d.Logger.Info("anthropic provider registered",
			zap.Int("priority", cfg.Providers.Anthropic.Priority))
	}

	fallbackAdapter := fallback.New(fallback.Config{
		BaseURL:        cfg.Fallback.BaseURL,
		APIKey:         cfg.Fallback.APIKey,
		TextModel:      cfg.Fallback.TextModel,
		EmbeddingModel: cfg.Fallback.EmbeddingModel,
	})
	if err := fallbackAdapter.Register(d.Registry, cfg.Fallback.Priority); err != nil {
		return fmt.Errorf("register fallback: %w", err)
	}
	d.Logger.Info("fallback provider registered",
		zap.Int("priority", cfg.Fallback.Priority))

	return nil
}

// initDispatcher builds the dispatcher over the registry and resolver
func (d *Dependencies) initDispatcher(cfg *config.Config) {
	opts := []dispatch.Option{
		dispatch.WithDefaultTimeout(cfg.Dispatcher.DefaultTimeout),
		dispatch.WithObserver(dispatch.NewLoggingObserver(d.Logger)),
	}

	if cfg.Dispatcher.BreakerEnabled {
		opts = append(opts, dispatch.WithCircuitBreaker(gobreaker.Settings{
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}))
	}

	d.Dispatcher = dispatch.New(d.Registry, d.Resolver, d.Logger, opts...)
}

// initHandlers builds the HTTP handlers and auth middleware
func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.DispatchHandler = handlers.NewDispatchHandler(d.Dispatcher, d.Secrets, d.Logger)
	d.ProviderHandler = handlers.NewProviderHandler(d.Registry, d.Logger)
	d.SettingsHandler = handlers.NewSettingsHandler(d.Resolver, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.Registry, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(
		cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience, d.Logger)
}
