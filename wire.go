package deepsearch

import (
	"fmt"
	"strings"

	"github.com/openagents/deepsearch/agent"
	"github.com/openagents/deepsearch/config"
	"github.com/openagents/deepsearch/intent"
	"github.com/openagents/deepsearch/logging"
	"github.com/openagents/deepsearch/model"
	anthropicmodel "github.com/openagents/deepsearch/model/anthropic"
	"github.com/openagents/deepsearch/model/openrouter"
	"github.com/openagents/deepsearch/rerank"
	"github.com/openagents/deepsearch/rerank/infinity"
	"github.com/openagents/deepsearch/rerank/jina"
	"github.com/openagents/deepsearch/search"
	"github.com/openagents/deepsearch/search/searxng"
	"github.com/openagents/deepsearch/search/serper"
	"github.com/openagents/deepsearch/tool"
	"github.com/openagents/deepsearch/tool/wolfram"
)

// NewFromConfig builds a fully wired Service from environment configuration:
// the default serper+jina search agent, the code agent, the tool-calling
// agent when Wolfram is configured, the secondary searxng+infinity search
// agent when both are configured, and a factory for configure-agent
// registrations. Construction is fail-fast; a missing required credential
// surfaces here and aborts startup.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	searchModel := buildModel(cfg, cfg.SearchModel, 0.2)
	orchestratorModel := buildModel(cfg, cfg.OrchestratorModel, 0.7)

	providers := newProviderRegistry(cfg)
	factory := newSearchAgentFactory(cfg, providers, searchModel, logger)

	defaultSearch, err := factory(AgentConfig{SearchProvider: "serper", Reranker: "jina"})
	if err != nil {
		return nil, err
	}

	searchTool := tool.NewSearchTool(defaultSearch)

	codeAgent := agent.NewCodeAgent(orchestratorModel, []tool.Tool{searchTool}, func(o *agent.ToolCallingAgentOptions) {
		o.Logger = logger
	})

	var reactAgent agent.Agent
	if cfg.WolframConfigured() {
		reactAgent = agent.NewToolCallingAgent(
			"react_agent",
			orchestratorModel,
			[]tool.Tool{searchTool, wolfram.New(cfg.WolframAppID)},
			func(o *agent.ToolCallingAgentOptions) {
				o.Logger = logger
			},
		)
	}

	svc, err := NewService(defaultSearch, func(o *Options) {
		o.Logger = logger
		o.ReactAgent = reactAgent
		o.CodeAgent = codeAgent
		o.Factory = factory
		o.Providers = providers
		o.Classifier = intent.Classifier{
			CodeEnabled:         codeAgent != nil,
			QuantitativeEnabled: reactAgent != nil,
			MultiHopEnabled:     cfg.SearxngConfigured() && cfg.InfinityConfigured(),
		}
	})
	if err != nil {
		return nil, err
	}

	if cfg.SearxngConfigured() && cfg.InfinityConfigured() {
		secondary, err := factory(AgentConfig{
			SearchProvider: "searxng",
			Reranker:       "infinity",
			SearxngURL:     cfg.SearxngInstanceURL,
			SearxngKey:     cfg.SearxngAPIKey,
		})
		if err != nil {
			return nil, err
		}
		svc.RegisterSearchAgent(secondary)
	}

	logger.Info("deep search service initialized",
		"agents", svc.ActiveAgents(),
		"react_available", svc.ReactAvailable(),
	)
	return svc, nil
}

// newProviderRegistry builds the search provider registry from the configured
// credentials. Providers whose credentials are absent are not registered; the
// factory reports them as not configured on lookup.
func newProviderRegistry(cfg *config.Config) *search.Registry {
	registry := search.NewRegistry()
	if cfg.SerperAPIKey != "" {
		registry.Register(serper.New(cfg.SerperAPIKey))
	}
	if cfg.SearxngConfigured() {
		registry.Register(searxng.New(cfg.SearxngInstanceURL, func(o *searxng.Options) {
			o.APIKey = cfg.SearxngAPIKey
		}))
	}
	return registry
}

// newSearchAgentFactory returns a factory constructing deep search agents for
// provider+reranker combinations. Providers are resolved through the shared
// registry; a configure-agent request carrying a SearXNG instance URL
// registers that instance so it also shows up in /config.
func newSearchAgentFactory(cfg *config.Config, providers *search.Registry, llm model.Model, logger logging.Logger) SearchAgentFactory {
	return func(ac AgentConfig) (*agent.DeepSearchAgent, error) {
		providerName := ac.SearchProvider
		if providerName == "" {
			providerName = "serper"
		}
		switch providerName {
		case "serper", "searxng":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, ac.SearchProvider)
		}

		if providerName == "searxng" && ac.SearxngURL != "" {
			key := ac.SearxngKey
			if key == "" {
				key = cfg.SearxngAPIKey
			}
			providers.Register(searxng.New(ac.SearxngURL, func(o *searxng.Options) { o.APIKey = key }))
		}

		provider, err := providers.Get(providerName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, providerName)
		}

		var reranker rerank.Reranker
		switch ac.Reranker {
		case "jina", "":
			if cfg.JinaAPIKey == "" {
				return nil, fmt.Errorf("%w: jina", ErrNotConfigured)
			}
			reranker = jina.New(cfg.JinaAPIKey)
		case "infinity":
			if !cfg.InfinityConfigured() {
				return nil, fmt.Errorf("%w: infinity", ErrNotConfigured)
			}
			reranker = infinity.New(cfg.InfinityBaseURL)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownReranker, ac.Reranker)
		}

		return agent.NewDeepSearchAgent(provider, reranker, llm, func(o *agent.DeepSearchAgentOptions) {
			if logger != nil {
				o.Logger = logger
			}
		}), nil
	}
}

// buildModel selects the backend for a model identifier. Identifiers with an
// "anthropic/" prefix call the Anthropic Messages API directly when an API
// key is configured; everything else goes through OpenRouter.
func buildModel(cfg *config.Config, id string, temperature float64) model.Model {
	if name, ok := strings.CutPrefix(id, "anthropic/"); ok && name != "" && cfg.AnthropicAPIKey != "" {
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = name
			o.APIKey = cfg.AnthropicAPIKey
			o.Temperature = temperature
		})
	}
	return openrouter.NewModel(func(o *openrouter.Options) {
		o.Model = trimModelPrefix(id)
		o.APIKey = cfg.OpenRouterAPIKey
		o.Temperature = temperature
	})
}

// trimModelPrefix strips the "openrouter/" routing prefix kept in the
// environment variables for compatibility with the previous deployment.
func trimModelPrefix(id string) string {
	const prefix = "openrouter/"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}
