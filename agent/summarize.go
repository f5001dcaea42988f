package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/llm"
)

const stageSummarize = "summarize"

// Summarizer synthesizes the final answer from the retained documents.
// Terminal node.
type Summarizer struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewSummarizer creates the summarizer node.
func NewSummarizer(client llm.Client, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		llm:    client,
		logger: logger.With(zap.String("node", stageSummarize)),
	}
}

// Run invokes the LLM once and stores the raw response text as the summary.
func (s *Summarizer) Run(ctx context.Context, st *State, pub eventbus.Publisher) error {
	s.logger.Info("generating summary", zap.Int("relevant_docs", len(st.RelevantDocs)))

	prompt := summarizePrompt +
		"\nUser query:\n" + st.Query +
		"\nPapers:\n" + strings.Join(st.RelevantDocs, "\n")

	resp, err := invokeStreaming(ctx, s.llm, llm.Request{Prompt: prompt}, pub, stageSummarize)
	if err != nil {
		return err
	}

	st.Summary = resp.Text
	pub.Publish("summarize_token", FormatSummary(st.Summary), nil)

	return nil
}
