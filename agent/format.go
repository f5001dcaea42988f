package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Markdown renderers for node outputs. These produce the human-readable
// event payloads streamed to observers.

// FormatPlan renders a plan as Markdown sections, one per step, followed
// by the reflection goal.
func FormatPlan(plan *Plan) string {
	if plan == nil || len(plan.Plan) == 0 {
		return "⚠️ No plan generated."
	}

	sections := make([]string, 0, len(plan.Plan)+1)
	for i, step := range plan.Plan {
		tool := titleCase(strings.ReplaceAll(step.Tool, "_", " "))
		terms := strings.Join(step.Query.SearchTerms, ", ")
		focus := strings.Join(step.Query.AdditionalFocus, ", ")

		section := fmt.Sprintf(
			"#### Step %d: %s\n**Purpose:** %s\n\n**Search Terms:** %s\n\n**Additional Focus:** %s\n\n**Rationale:** %s",
			i+1, tool, step.Purpose, orDash(terms), orDash(focus), orDash(step.Rationale),
		)
		sections = append(sections, section)
	}

	var focusLines []string
	for _, focus := range plan.Reflection.AnalysisFocus {
		focusLines = append(focusLines, "* "+focus)
	}
	reflection := fmt.Sprintf(
		"\n#### Reflection\n**Purpose:** %s\n\n**Analysis Focus:**\n%s\n\n**Rationale:** %s\n\n",
		plan.Reflection.Purpose, strings.Join(focusLines, "\n"), plan.Reflection.Rationale,
	)
	sections = append(sections, reflection)

	return "\n### 🗺️ Generated Plan\n\n" + strings.Join(sections, "\n\n---\n\n")
}

// FormatSearchQueries renders the expanded queries and the retrieval count.
func FormatSearchQueries(queries []SearchQuery, results int) string {
	text := "### 🔍 Search & Retrieval\n\n"

	if len(queries) == 0 {
		return text + "⚠️ No queries generated."
	}

	text += "#### Search Queries\n"
	for i, q := range queries {
		qtext := strings.ReplaceAll(q.SearchQuery, "\n", " ")
		text += fmt.Sprintf("- **Query %d:** `%s` (max %d)\n", i+1, qtext, q.MaxResults)
	}

	text += fmt.Sprintf("\n**Total papers retrieved:** %d\n", results)
	return text
}

// FormatRetrievalStats renders the relevance-filtering stats.
func FormatRetrievalStats(totalDocs, selectedDocs int, threshold float64) string {
	return fmt.Sprintf(
		"\n#### 📄 Relevance Filtering\n- **Total retrieved:** %d\n- **Selected (above threshold):** %d\n- **Threshold:** %.4f\n",
		totalDocs, selectedDocs, threshold,
	)
}

// FormatReflection renders a reflection verdict.
func FormatReflection(verdict ReflectionVerdict) string {
	icon, text := "❌", "Needs more papers."
	if verdict.Sufficient {
		icon, text = "✅", "Sufficient papers found."
	}
	return fmt.Sprintf("\n### 💭 Reflection Result\n%s **%s**\n%s", icon, text, orDash(verdict.Notes))
}

// FormatSummary renders the final summary.
func FormatSummary(summary string) string {
	if summary == "" {
		return "⚠️ No summary generated."
	}
	return "\n### 🧾 Summary\n" + summary
}

// PrettyJSON returns a fenced JSON code block for debug display.
func PrettyJSON(obj any) string {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	return "```json\n" + string(data) + "\n```"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// titleCase uppercases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// stripJSONFence removes a leading ```json fence and trailing ``` so
// fenced-or-bare model output parses uniformly.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
