package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/llm"
	"github.com/BaSui01/researchflow/types"
)

const stageReflection = "reflection"

// forcedSummaryRemark is appended to the reflection notes when the cycle
// ceiling is hit with an insufficient verdict.
const forcedSummaryRemark = "\nSearched more than 3 times, USE WHATEVER PAPERS YOU HAVE TO GENERATE A SUMMARY"

// noRelevantPapersNotice replaces the paper list in the prompt when
// nothing survived relevance filtering.
const noRelevantPapersNotice = "No relevant papers retrieved, search with different search terms and additional terms compared to the previous search parameters."

// ReflectionVerdict is the parsed reflection output.
type ReflectionVerdict struct {
	Sufficient bool   `json:"sufficient"`
	Notes      string `json:"notes"`
}

// Reflection judges whether the retained documents suffice and enforces
// the planning-cycle ceiling.
type Reflection struct {
	llm       llm.Client
	maxCycles int
	logger    *zap.Logger
}

// NewReflection creates the reflection node. maxCycles <= 0 selects the
// default ceiling of 3.
func NewReflection(client llm.Client, maxCycles int, logger *zap.Logger) *Reflection {
	if maxCycles <= 0 {
		maxCycles = 3
	}
	return &Reflection{
		llm:       client,
		maxCycles: maxCycles,
		logger:    logger.With(zap.String("node", stageReflection)),
	}
}

// Run asks the LLM for a sufficiency verdict, resets the cycle's raw
// results, and carries the notes forward. An insufficient verdict at the
// cycle ceiling is forced sufficient with an explicit remark, which is the
// termination guarantee for the replan loop. Parse failure is fatal.
func (r *Reflection) Run(ctx context.Context, st *State, pub eventbus.Publisher) error {
	var goalJSON []byte
	if st.OriginalPlan != nil {
		goalJSON, _ = json.Marshal(st.OriginalPlan.Reflection)
	} else {
		goalJSON = []byte("{}")
	}

	prompt := reflectionPrompt + "\nplanned reflection:\n" + string(goalJSON) +
		"\nTop relevant papers retrieved from arxiv search:\n" + strings.Join(st.RelevantDocs, "\n")

	if len(st.RelevantDocs) == 0 {
		prompt = reflectionPrompt + "\nplanned reflection:\n" + string(goalJSON) +
			"\nTop relevant papers retrieved from arxiv search: " + noRelevantPapersNotice
	}

	resp, err := invokeStreaming(ctx, r.llm, llm.Request{Prompt: prompt}, pub, stageReflection)
	if err != nil {
		pub.Publish(stageReflection, "error", map[string]any{"error": err.Error()})
		return err
	}

	raw := stripJSONFence(resp.Text)

	var verdict ReflectionVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		pub.Publish(stageReflection, "error", map[string]any{"raw": raw, "error": err.Error()})
		return types.NewError(types.ErrMalformedOutput, "reflection returned invalid JSON").WithCause(err)
	}

	if !verdict.Sufficient && st.Count >= r.maxCycles {
		r.logger.Warn("cycle ceiling reached, forcing summary", zap.Int("count", st.Count))
		verdict.Notes += forcedSummaryRemark
		verdict.Sufficient = true
	}

	r.logger.Info("reflection verdict",
		zap.Bool("sufficient", verdict.Sufficient),
		zap.Int("relevant_docs", len(st.RelevantDocs)))

	st.resetResults()
	setReflection(st, verdict.Sufficient)
	st.ReflectionNotes = verdict.Notes

	pub.Publish("reflection_token", FormatReflection(verdict), nil)

	return nil
}
