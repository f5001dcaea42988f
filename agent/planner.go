package agent

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/llm"
)

const stagePlanner = "planner"

// Planner produces or revises the structured action plan via an LLM call.
type Planner struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewPlanner creates the planner node.
func NewPlanner(client llm.Client, logger *zap.Logger) *Planner {
	return &Planner{
		llm:    client,
		logger: logger.With(zap.String("node", stagePlanner)),
	}
}

// Run increments the cycle counter, builds the initial or revision prompt,
// and replaces the plan with the parsed output.
//
// Parse failure is a soft failure by contract: the node publishes a
// plan_parse_error diagnostic and returns the state otherwise unchanged, so
// the run proceeds deterministically (empty plan falls through the search
// loop to the relevance filter and reflection).
func (p *Planner) Run(ctx context.Context, st *State, pub eventbus.Publisher) error {
	st.Count++

	var prompt string
	if st.ReflectionNotes != "" {
		p.logger.Info("generating revised plan", zap.Int("cycle", st.Count))
		pub.Publish("planner_token", "\n### Generating New Plan\n", nil)

		originalPlan, _ := json.Marshal(st.OriginalPlan)
		prompt = plannerRevisionPrompt +
			"\nUser query:\n" + st.Query +
			"\nOriginal plan:\n" + string(originalPlan) +
			"\nReflection notes:\n" + st.ReflectionNotes
	} else {
		p.logger.Info("generating initial plan")
		pub.Publish("planner_token", "\n### Generating Initial Plan\n", nil)

		prompt = plannerSystemPrompt + "\nUser query:\n" + st.Query
	}

	resp, err := invokeStreaming(ctx, p.llm, llm.Request{Prompt: prompt}, pub, stagePlanner)
	if err != nil {
		return err
	}

	raw := stripJSONFence(resp.Text)

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		pub.Publish(stagePlanner, "plan_parse_error", map[string]any{
			"raw":   raw,
			"error": err.Error(),
		})
		p.logger.Warn("plan parse failed", zap.Error(err))
		return nil
	}

	st.OriginalPlan = &plan
	st.Plan = plan.Plan

	p.logger.Info("plan generated", zap.Int("steps", len(st.Plan)))
	pub.Publish("planner_token", FormatPlan(&plan), nil)

	return nil
}
