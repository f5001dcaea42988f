// Package researchflow provides a top-level convenience entry point for
// assembling the research workflow engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/researchflow"
//
//	engine, err := researchflow.New(llmClient, embedder, arxivClient)
//	engine, err := researchflow.New(llmClient, embedder, arxivClient,
//	    researchflow.WithLogger(logger),
//	    researchflow.WithMaxPlanningCycles(2))
//
// This is a thin wrapper around [agent.NewEngine]; both produce identical
// results. Use this package when you prefer the shorter import path.
package researchflow

import (
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/agent"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/llm"
	"github.com/BaSui01/researchflow/llm/embedding"
)

type options struct {
	logger             *zap.Logger
	collector          *metrics.Collector
	maxPlanningCycles  int
	maxSteps           int
	thresholdMargin    float64
	maxResultsPerQuery int
}

// Option configures the engine created by [New].
type Option func(*options)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollector sets a metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(o *options) { o.collector = collector }
}

// WithMaxPlanningCycles overrides the planning-cycle ceiling.
func WithMaxPlanningCycles(n int) Option {
	return func(o *options) { o.maxPlanningCycles = n }
}

// WithMaxSteps overrides the engine step ceiling.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithThresholdMargin overrides the relevance threshold margin.
func WithThresholdMargin(m float64) Option {
	return func(o *options) { o.thresholdMargin = m }
}

// WithMaxResultsPerQuery caps the retrieval size of each expanded query.
func WithMaxResultsPerQuery(n int) Option {
	return func(o *options) { o.maxResultsPerQuery = n }
}

// New assembles a ready-to-run workflow engine from an LLM client, an
// embedding provider, and a search provider.
func New(client llm.Client, embedder embedding.Provider, provider agent.SearchProvider, opts ...Option) (*agent.Engine, error) {
	o := options{
		logger:             zap.NewNop(),
		maxPlanningCycles:  3,
		maxResultsPerQuery: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return agent.NewEngine(
		agent.NewPlanner(client, o.logger),
		agent.NewSearch(client, provider, o.maxResultsPerQuery, o.collector, o.logger),
		agent.NewRelevanceFilter(embedder, o.thresholdMargin, o.collector, o.logger),
		agent.NewReflection(client, o.maxPlanningCycles, o.logger),
		agent.NewSummarizer(client, o.logger),
		o.maxSteps,
		o.collector,
		o.logger,
	)
}
