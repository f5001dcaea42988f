package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/llm"
	"github.com/BaSui01/researchflow/search/arxiv"
	"github.com/BaSui01/researchflow/types"
)

const stageSearch = "search_arxiv"

// SearchQuery is one expanded provider query produced by the LLM.
type SearchQuery struct {
	SearchQuery string `json:"search_query"`
	MaxResults  int    `json:"max_results"`
}

// SearchProvider is the external literature search collaborator.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error)
}

// Search executes the front plan step: the LLM expands its search terms
// into provider queries, the provider is queried once per expansion, and
// the normalized hits are appended to the cycle's results.
type Search struct {
	llm        llm.Client
	provider   SearchProvider
	maxResults int
	collector  *metrics.Collector
	logger     *zap.Logger
}

// NewSearch creates the search node. collector may be nil.
func NewSearch(client llm.Client, provider SearchProvider, maxResults int, collector *metrics.Collector, logger *zap.Logger) *Search {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Search{
		llm:        client,
		provider:   provider,
		maxResults: maxResults,
		collector:  collector,
		logger:     logger.With(zap.String("node", stageSearch)),
	}
}

// Run requires a non-empty plan. The consumed step is popped from the
// front only after its searches have executed. Parse or provider failure
// is fatal for the run: the plan would otherwise be left partially
// consumed.
func (s *Search) Run(ctx context.Context, st *State, pub eventbus.Publisher) error {
	if len(st.Plan) == 0 {
		return types.NewError(types.ErrInternalError, "search invoked with empty plan")
	}

	step := st.Plan[0]
	s.logger.Info("expanding search queries",
		zap.Strings("search_terms", step.Query.SearchTerms))

	prompt := queryExpansionPrompt +
		fmt.Sprintf("\nSearch terms:%v\nAdditional focus:%v", step.Query.SearchTerms, step.Query.AdditionalFocus)

	resp, err := invokeStreaming(ctx, s.llm, llm.Request{Prompt: prompt}, pub, stageSearch)
	if err != nil {
		pub.Publish(stageSearch, "error", map[string]any{"error": err.Error()})
		return err
	}

	raw := stripJSONFence(resp.Text)

	var queries []SearchQuery
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		pub.Publish(stageSearch, "error", map[string]any{"raw": raw, "error": err.Error()})
		return types.NewError(types.ErrMalformedOutput, "query expansion returned invalid JSON").WithCause(err)
	}

	// Expanded queries are independent reads; fan out and join back
	// positionally so result order follows expansion order.
	perQuery := make([][]arxiv.Paper, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, q := range queries {
		maxResults := q.MaxResults
		if maxResults <= 0 || maxResults > s.maxResults {
			maxResults = s.maxResults
		}
		g.Go(func() error {
			papers, err := s.provider.Search(gctx, q.SearchQuery, maxResults)
			if err != nil {
				s.recordSearch("error")
				return err
			}
			s.recordSearch("success")
			perQuery[i] = papers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		pub.Publish(stageSearch, "error", map[string]any{"error": err.Error()})
		return types.NewError(types.ErrUpstreamError, "literature search failed").
			WithCause(err).
			WithProvider(s.provider.Name())
	}

	count := 0
	for _, papers := range perQuery {
		st.Results[sourceArxiv] = append(st.Results[sourceArxiv], papers...)
		count += len(papers)
	}
	if s.collector != nil {
		s.collector.RecordDocumentsRetrieved(count)
	}

	st.Plan = st.Plan[1:]
	s.logger.Info("search step done",
		zap.Int("retrieved", count),
		zap.Int("steps_left", len(st.Plan)))

	pub.Publish("search_arxiv_token", FormatSearchQueries(queries, count), nil)

	return nil
}

func (s *Search) recordSearch(status string) {
	if s.collector != nil {
		s.collector.RecordSearchRequest(s.provider.Name(), status)
	}
}
