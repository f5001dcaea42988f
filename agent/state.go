// Package agent implements the iterative research workflow: planning,
// literature search, relevance filtering, reflection, and summarization
// over a shared state record driven by a fixed node graph.
package agent

import "github.com/BaSui01/researchflow/search/arxiv"

// StepQuery holds the structured query of a plan step.
type StepQuery struct {
	SearchTerms     []string `json:"search_terms"`
	AdditionalFocus []string `json:"additional_focus"`
}

// PlanStep is one unit of search work emitted by the planner.
type PlanStep struct {
	Tool      string    `json:"tool"`
	Purpose   string    `json:"purpose"`
	Query     StepQuery `json:"query"`
	Rationale string    `json:"rationale"`
}

// ReflectionGoal is the analysis focus attached to a plan, used to judge
// sufficiency of retrieved evidence.
type ReflectionGoal struct {
	Purpose       string   `json:"purpose"`
	AnalysisFocus []string `json:"analysis_focus"`
	Rationale     string   `json:"rationale"`
}

// Plan is the full planner output: the step list plus the reflection goal.
type Plan struct {
	Plan       []PlanStep     `json:"plan"`
	Reflection ReflectionGoal `json:"reflection"`
}

// State is the shared research state threaded through every node.
// It is exclusively owned by the single in-flight workflow run, so no
// locking is needed, and it is plainly JSON-serializable: the event
// publisher is injected into nodes separately, never stored here.
type State struct {
	// Query is the original user question, immutable after creation.
	Query string `json:"query"`

	// OriginalPlan is the latest full planning output.
	OriginalPlan *Plan `json:"original_plan"`

	// Plan is the FIFO queue of remaining unexecuted search steps.
	Plan []PlanStep `json:"plan"`

	// Results maps source name to raw hits for the current cycle.
	// Reset after every reflection verdict.
	Results map[string][]arxiv.Paper `json:"results"`

	// RelevantDocs accumulates retained documents across cycles,
	// never cleared.
	RelevantDocs []string `json:"relevant_docs"`

	// Reflection is the last verdict: nil before the first reflection.
	Reflection *bool `json:"reflection"`

	// ReflectionNotes carries the replanning rationale. Empty string
	// means first run.
	ReflectionNotes string `json:"reflection_notes"`

	// Summary is the final synthesized answer.
	Summary string `json:"summary"`

	// Count is the planning-cycle counter, incremented once per
	// planner invocation.
	Count int `json:"count"`
}

// NewState creates the initial state for a query.
func NewState(query string) *State {
	return &State{
		Query:        query,
		Plan:         []PlanStep{},
		Results:      map[string][]arxiv.Paper{sourceArxiv: {}},
		RelevantDocs: []string{},
	}
}

const sourceArxiv = "arxiv"

// resetResults clears the current cycle's raw hits.
func (s *State) resetResults() {
	s.Results = map[string][]arxiv.Paper{sourceArxiv: {}}
}

// retrievedDocs renders the current cycle's raw hits as document texts,
// in retrieval order.
func (s *State) retrievedDocs() []string {
	papers := s.Results[sourceArxiv]
	docs := make([]string, 0, len(papers))
	for _, p := range papers {
		docs = append(docs, docContent(p))
	}
	return docs
}

func docContent(p arxiv.Paper) string {
	return "Title: " + p.Title + "\nSummary:\n" + p.Summary + "\nLink: " + p.Link
}

func setReflection(s *State, verdict bool) {
	s.Reflection = &verdict
}
