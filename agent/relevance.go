package agent

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/llm/embedding"
	"github.com/BaSui01/researchflow/types"
)

const stageRelevance = "relevance"

// defaultThresholdMargin is the fixed offset above the cycle's mean
// similarity. The cutoff adapts to the embedding model's score scale
// instead of being an absolute tunable.
const defaultThresholdMargin = 0.005

// RelevanceFilter embeds the combined query and every retrieved document,
// scores by cosine similarity, and retains documents at or above
// mean+margin.
type RelevanceFilter struct {
	embedder  embedding.Provider
	margin    float64
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewRelevanceFilter creates the relevance filter node. A margin of 0
// selects the default. collector may be nil.
func NewRelevanceFilter(embedder embedding.Provider, margin float64, collector *metrics.Collector, logger *zap.Logger) *RelevanceFilter {
	if margin == 0 {
		margin = defaultThresholdMargin
	}
	return &RelevanceFilter{
		embedder:  embedder,
		margin:    margin,
		collector: collector,
		logger:    logger.With(zap.String("node", stageRelevance)),
	}
}

// Run filters the cycle's raw hits into RelevantDocs. Zero retrieved
// documents is a passthrough: zero stats are published and the state is
// untouched. Previously retained documents are never removed.
func (f *RelevanceFilter) Run(ctx context.Context, st *State, pub eventbus.Publisher) error {
	docs := st.retrievedDocs()
	f.logger.Info("filtering retrieved papers", zap.Int("retrieved", len(docs)))

	if len(docs) == 0 {
		pub.Publish("search_arxiv_token", FormatRetrievalStats(0, 0, 0.0), nil)
		return nil
	}

	combinedQuery := st.Query
	if st.OriginalPlan != nil && len(st.OriginalPlan.Reflection.AnalysisFocus) > 0 {
		combinedQuery += ". " + strings.Join(st.OriginalPlan.Reflection.AnalysisFocus, " ")
	}

	// Query and document embeddings are independent; fan out and join
	// positionally so similarities line up with retrieval order.
	var queryEmb []float64
	docEmbs := make([][]float64, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emb, err := f.embedder.EmbedQuery(gctx, combinedQuery)
		if err != nil {
			return err
		}
		queryEmb = emb
		return nil
	})
	g.Go(func() error {
		embs, err := f.embedder.EmbedDocuments(gctx, docs)
		if err != nil {
			return err
		}
		copy(docEmbs, embs)
		return nil
	})
	if err := g.Wait(); err != nil {
		pub.Publish(stageRelevance, "error", map[string]any{"error": err.Error()})
		return types.NewError(types.ErrUpstreamError, "embedding failed").
			WithCause(err).
			WithProvider(f.embedder.Name())
	}

	queryVec := normalize(queryEmb)
	similarities := make([]float64, len(docs))
	for i, emb := range docEmbs {
		similarities[i] = dot(normalize(emb), queryVec)
	}

	threshold := mean(similarities) + f.margin

	selected := 0
	for i, doc := range docs {
		// a score exactly at threshold is selected
		if similarities[i] >= threshold {
			selected++
			st.RelevantDocs = append(st.RelevantDocs, doc)
		}
	}

	if f.collector != nil {
		f.collector.RecordDocumentsSelected(selected)
	}
	f.logger.Info("relevance filtering done",
		zap.Int("selected", selected),
		zap.Int("retrieved", len(docs)),
		zap.Float64("threshold", threshold))

	pub.Publish("search_arxiv_token", FormatRetrievalStats(len(docs), selected, threshold), nil)

	return nil
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
