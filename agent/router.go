package agent

// Decision is a routing label returned by a decision node.
type Decision string

const (
	// DecisionMoreWork routes back into the search loop.
	DecisionMoreWork Decision = "more_work"
	// DecisionProceed leaves the search loop for relevance filtering.
	DecisionProceed Decision = "proceed"
	// DecisionSummarize routes to the terminal summarizer.
	DecisionSummarize Decision = "summarize"
	// DecisionReplan routes back to the planner.
	DecisionReplan Decision = "plan"
)

// routeAfterPlanning is a pure function of the plan queue: more work iff
// steps remain.
func routeAfterPlanning(st *State) Decision {
	if len(st.Plan) == 0 {
		return DecisionProceed
	}
	return DecisionMoreWork
}

// routeAfterReflection routes on the reflection verdict. A nil verdict is
// treated as insufficient (replan).
func routeAfterReflection(st *State) Decision {
	if st.Reflection != nil && *st.Reflection {
		return DecisionSummarize
	}
	return DecisionReplan
}
