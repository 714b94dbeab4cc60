// Package deepsearch provides a high-level façade over the agent, search,
// rerank and model subsystems. A Service holds the fixed set of agents built
// at startup, routes each incoming query to exactly one of them (by explicit
// mode or classified intent) and returns the agent's answer together with
// routing metadata. The HTTP layer in the server package is a thin shell
// around this type.
package deepsearch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openagents/deepsearch/agent"
	"github.com/openagents/deepsearch/config"
	"github.com/openagents/deepsearch/intent"
	"github.com/openagents/deepsearch/logging"
	"github.com/openagents/deepsearch/search"
)

// Mode is a client-supplied hint selecting which agent should handle a query.
type Mode string

const (
	// ModeDefault routes to the deep search agent.
	ModeDefault Mode = "default"
	// ModePro routes to the tool-calling agent.
	ModePro Mode = "pro"
	// ModeCode routes to the code agent.
	ModeCode Mode = "code"
)

// Request errors reported to clients as validation failures rather than
// internal errors.
var (
	// ErrEmptyQuery is returned when the query text is empty or missing.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrUnknownMode is returned for a mode outside the supported set.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrUnknownProvider is returned for an unsupported search provider name.
	ErrUnknownProvider = errors.New("unknown search provider")
	// ErrUnknownReranker is returned for an unsupported reranker name.
	ErrUnknownReranker = errors.New("unknown reranker")
	// ErrNotConfigured is returned when a requested capability has no
	// credentials configured.
	ErrNotConfigured = errors.New("capability not configured")
)

// IsRequestError reports whether err represents an invalid request (as
// opposed to an internal agent failure).
func IsRequestError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrUnknownMode) ||
		errors.Is(err, ErrUnknownProvider) ||
		errors.Is(err, ErrUnknownReranker) ||
		errors.Is(err, ErrNotConfigured)
}

// QueryRequest is a single incoming query with optional routing hints.
type QueryRequest struct {
	Query          string
	Mode           Mode
	SearchProvider string
	Reranker       string
	UseReact       bool
}

// Metadata records which agent/provider/reranker combination served a request.
type Metadata struct {
	Agent          string `json:"agent"`
	Intent         string `json:"intent,omitempty"`
	SearchProvider string `json:"search_provider,omitempty"`
	Reranker       string `json:"reranker,omitempty"`
	AdditionalTool string `json:"additional_tool,omitempty"`
	Date           string `json:"date"`
}

// QueryResult pairs the agent's answer with routing metadata.
type QueryResult struct {
	Response string
	Metadata Metadata
}

// AgentConfig describes a provider+reranker combination to register through
// the configuration endpoint.
type AgentConfig struct {
	SearchProvider string
	Reranker       string
	SearxngURL     string
	SearxngKey     string
}

// SearchAgentFactory constructs a deep search agent for a provider+reranker
// combination. Injected so tests can substitute stub pipelines.
type SearchAgentFactory func(cfg AgentConfig) (*agent.DeepSearchAgent, error)

// Options configures the Service.
type Options struct {
	// Logger used for routing decisions and query metrics.
	Logger logging.Logger
	// Now supplies the date prefixed to queries; defaults to time.Now.
	Now func() time.Time
	// ReactAgent handles pro mode and quantitative queries. Nil disables it.
	ReactAgent agent.Agent
	// CodeAgent handles code mode and code-classified queries.
	CodeAgent agent.Agent
	// Factory lazily builds search agents for configure-agent requests.
	Factory SearchAgentFactory
	// Classifier maps unrouted queries to intents.
	Classifier intent.Classifier
	// Providers is the search provider registry reported by /config. The
	// factory shares it so configure-agent registrations show up there.
	Providers *search.Registry
}

// Service routes queries to a fixed set of pre-constructed agents.
//
// The only mutable process-wide state is the search agent table, keyed by
// "provider_reranker". It is pre-populated at startup and extended only
// through ConfigureAgent behind a single mutex, so concurrent lazy
// construction cannot race.
type Service struct {
	mu           sync.RWMutex
	searchAgents map[string]*agent.DeepSearchAgent

	reactAgent agent.Agent
	codeAgent  agent.Agent
	classifier intent.Classifier
	factory    SearchAgentFactory
	providers  *search.Registry
	logger     logging.Logger
	now        func() time.Time

	defaultKey   string
	secondaryKey string
}

// DefaultAgentKey is the registry key of the startup search agent.
const DefaultAgentKey = "serper_jina"

// SecondaryAgentKey is the registry key of the multi-hop search agent.
const SecondaryAgentKey = "searxng_infinity"

// NewService creates a Service routing to the given default search agent and
// the optional agents supplied via Options.
func NewService(defaultSearch *agent.DeepSearchAgent, optFns ...func(o *Options)) (*Service, error) {
	if defaultSearch == nil {
		return nil, errors.New("deepsearch: default search agent is required")
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Providers == nil {
		opts.Providers = search.NewRegistry()
	}

	s := &Service{
		searchAgents: map[string]*agent.DeepSearchAgent{},
		reactAgent:   opts.ReactAgent,
		codeAgent:    opts.CodeAgent,
		classifier:   opts.Classifier,
		factory:      opts.Factory,
		providers:    opts.Providers,
		logger:       opts.Logger,
		now:          opts.Now,
		defaultKey:   agentKey(defaultSearch.Provider(), defaultSearch.Reranker()),
		secondaryKey: SecondaryAgentKey,
	}
	s.searchAgents[s.defaultKey] = defaultSearch
	return s, nil
}

// RegisterSearchAgent adds a search agent to the registry under its
// provider_reranker key. Intended for startup wiring; later additions go
// through ConfigureAgent.
func (s *Service) RegisterSearchAgent(a *agent.DeepSearchAgent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchAgents[agentKey(a.Provider(), a.Reranker())] = a
}

// ConfigureAgent registers the provider+reranker combination described by
// cfg, constructing the agent through the factory if it is not yet present.
// Registration is idempotent; concurrent calls for the same key construct at
// most one agent.
func (s *Service) ConfigureAgent(cfg AgentConfig) (string, error) {
	if s.factory == nil {
		return "", fmt.Errorf("%w: agent factory", ErrNotConfigured)
	}

	key := agentKey(cfg.SearchProvider, cfg.Reranker)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.searchAgents[key]; ok {
		return key, nil
	}
	a, err := s.factory(cfg)
	if err != nil {
		return "", err
	}
	s.searchAgents[key] = a
	s.logger.Info("search agent registered", "key", key)
	return key, nil
}

// ActiveAgents returns the names of all agents available for routing,
// sorted for stable output.
func (s *Service) ActiveAgents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.searchAgents)+2)
	for _, a := range s.searchAgents {
		names = append(names, a.Name())
	}
	if s.codeAgent != nil {
		names = append(names, s.codeAgent.Name())
	}
	if s.reactAgent != nil {
		names = append(names, s.reactAgent.Name())
	}
	sort.Strings(names)
	return names
}

// ReactAvailable reports whether the tool-calling agent is configured.
func (s *Service) ReactAvailable() bool { return s.reactAgent != nil }

// Date returns the human readable current date used as query context.
func (s *Service) Date() string {
	return s.now().Format("January 2, 2006")
}

// Query routes a request to exactly one agent and returns its answer.
//
// Routing order:
//  1. UseReact forces the tool-calling agent when configured.
//  2. An explicit mode selects via the static mode table.
//  3. Otherwise the intent classifier picks the agent.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	date := s.Date()
	dated := fmt.Sprintf("Today is %s. %s", date, req.Query)

	start := time.Now()
	result, err := s.dispatch(ctx, req, dated, date)
	if sl, ok := s.logger.(*logging.ServiceLogger); ok {
		agentName, intentName := "", ""
		if result != nil {
			agentName, intentName = result.Metadata.Agent, result.Metadata.Intent
		}
		sl.LogQuery(agentName, intentName, time.Since(start), err)
	}
	return result, err
}

func (s *Service) dispatch(ctx context.Context, req QueryRequest, dated, date string) (*QueryResult, error) {
	if req.UseReact && s.reactAgent != nil {
		return s.runReact(ctx, dated, date, "")
	}

	switch req.Mode {
	case ModePro:
		if s.reactAgent == nil {
			// No tool-calling agent configured; pro degrades to a deep
			// (exhaustive) search on the requested provider.
			return s.runSearch(ctx, req, dated, date, "", true)
		}
		return s.runReact(ctx, dated, date, "")
	case ModeCode:
		return s.runCode(ctx, dated, date, "")
	case ModeDefault, "":
		if req.Mode == ModeDefault {
			return s.runSearch(ctx, req, dated, date, "", false)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	// No explicit mode: classify.
	switch it := s.classifier.Classify(req.Query); it {
	case intent.Code:
		return s.runCode(ctx, dated, date, it.String())
	case intent.Quantitative:
		return s.runReact(ctx, dated, date, it.String())
	case intent.MultiHop:
		if a := s.lookup(s.secondaryKey); a != nil {
			return s.runAgent(ctx, a, dated, date, it.String(), false)
		}
		return s.runSearch(ctx, req, dated, date, it.String(), false)
	default:
		return s.runSearch(ctx, req, dated, date, it.String(), false)
	}
}

func (s *Service) runReact(ctx context.Context, dated, date, intentName string) (*QueryResult, error) {
	if s.reactAgent == nil {
		return nil, fmt.Errorf("%w: tool-calling agent", ErrNotConfigured)
	}
	answer, err := s.reactAgent.Run(ctx, dated)
	if err != nil {
		return nil, err
	}
	meta := Metadata{
		Agent:  s.reactAgent.Name(),
		Intent: intentName,
		Date:   date,
	}
	s.fillReactToolMetadata(&meta)
	return &QueryResult{Response: answer, Metadata: meta}, nil
}

// fillReactToolMetadata reports the tool-calling agent's actual capabilities:
// the search backend behind its web_search tool and any additional tool it
// carries. Agents that do not expose their tool set leave the fields empty.
func (s *Service) fillReactToolMetadata(meta *Metadata) {
	lister, ok := s.reactAgent.(interface{ ToolNames() []string })
	if !ok {
		return
	}
	names := lister.ToolNames()
	sort.Strings(names)
	for _, name := range names {
		if name == "web_search" {
			if a := s.lookup(s.defaultKey); a != nil {
				meta.SearchProvider = a.Provider()
				meta.Reranker = a.Reranker()
			}
			continue
		}
		meta.AdditionalTool = name
	}
}

func (s *Service) runCode(ctx context.Context, dated, date, intentName string) (*QueryResult, error) {
	if s.codeAgent == nil {
		return nil, fmt.Errorf("%w: code agent", ErrNotConfigured)
	}
	answer, err := s.codeAgent.Run(ctx, dated)
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Response: answer,
		Metadata: Metadata{
			Agent:  s.codeAgent.Name(),
			Intent: intentName,
			Date:   date,
		},
	}, nil
}

func (s *Service) runSearch(ctx context.Context, req QueryRequest, dated, date, intentName string, deep bool) (*QueryResult, error) {
	a, err := s.selectSearchAgent(req)
	if err != nil {
		return nil, err
	}
	return s.runAgent(ctx, a, dated, date, intentName, deep)
}

func (s *Service) runAgent(ctx context.Context, a *agent.DeepSearchAgent, dated, date, intentName string, deep bool) (*QueryResult, error) {
	answer, err := a.Search(ctx, dated, deep)
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Response: answer,
		Metadata: Metadata{
			Agent:          a.Name(),
			Intent:         intentName,
			SearchProvider: a.Provider(),
			Reranker:       a.Reranker(),
			Date:           date,
		},
	}, nil
}

// selectSearchAgent resolves the search agent for a request's provider and
// reranker hints, defaulting to the startup agent when no hints are given.
func (s *Service) selectSearchAgent(req QueryRequest) (*agent.DeepSearchAgent, error) {
	if req.SearchProvider == "" && req.Reranker == "" {
		if a := s.lookup(s.defaultKey); a != nil {
			return a, nil
		}
		return nil, fmt.Errorf("%w: default search agent", ErrNotConfigured)
	}

	provider := req.SearchProvider
	if provider == "" {
		provider = "serper"
	}
	reranker := req.Reranker
	if reranker == "" {
		reranker = "jina"
	}
	if a := s.lookup(agentKey(provider, reranker)); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s with %s (register it via configure-agent)", ErrNotConfigured, provider, reranker)
}

func (s *Service) lookup(key string) *agent.DeepSearchAgent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchAgents[key]
}

func agentKey(provider, reranker string) string {
	return provider + "_" + reranker
}

// ConfigSnapshot is the static/derived configuration reported by /config.
type ConfigSnapshot struct {
	DefaultModel       string   `json:"default_model"`
	SearchModel        string   `json:"search_model"`
	OrchestratorModel  string   `json:"orchestrator_model"`
	AvailableProviders []string `json:"available_providers"`
	AvailableRerankers []string `json:"available_rerankers"`
	ReactAvailable     bool     `json:"react_available"`
	ActiveAgents       []string `json:"active_agents"`
	Version            string   `json:"version"`
}

// Snapshot builds the configuration view exposed over HTTP.
func (s *Service) Snapshot(cfg *config.Config) ConfigSnapshot {
	rerankers := []string{"jina"}
	if cfg.InfinityConfigured() {
		rerankers = append(rerankers, "infinity")
	}
	return ConfigSnapshot{
		DefaultModel:       cfg.DefaultModel,
		SearchModel:        cfg.SearchModel,
		OrchestratorModel:  cfg.OrchestratorModel,
		AvailableProviders: s.providers.Names(),
		AvailableRerankers: rerankers,
		ReactAvailable:     s.ReactAvailable(),
		ActiveAgents:       s.ActiveAgents(),
		Version:            config.Version,
	}
}
