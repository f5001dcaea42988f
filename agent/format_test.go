package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPlanRoundTripVerbatim(t *testing.T) {
	var plan Plan
	require.NoError(t, json.Unmarshal([]byte(testPlanJSON), &plan))

	md := FormatPlan(&plan)

	// every step's tool, purpose, and search terms survive formatting
	assert.Contains(t, md, "#### Step 1: Arxiv Search")
	assert.Contains(t, md, "**Purpose:** find recent work")
	assert.Contains(t, md, "LLM vulnerabilities")
	assert.Contains(t, md, "prompt injection")
	assert.Contains(t, md, "**Rationale:** directly relevant")

	assert.Contains(t, md, "#### Reflection")
	assert.Contains(t, md, "* attack surfaces")
	assert.Contains(t, md, "* mitigations")
}

func TestFormatPlanEmpty(t *testing.T) {
	assert.Equal(t, "⚠️ No plan generated.", FormatPlan(nil))
	assert.Equal(t, "⚠️ No plan generated.", FormatPlan(&Plan{}))
}

func TestFormatSearchQueries(t *testing.T) {
	queries := []SearchQuery{
		{SearchQuery: "all:topic\nAND abs:focus", MaxResults: 5},
		{SearchQuery: "ti:other", MaxResults: 3},
	}

	md := FormatSearchQueries(queries, 7)
	assert.Contains(t, md, "- **Query 1:** `all:topic AND abs:focus` (max 5)")
	assert.Contains(t, md, "- **Query 2:** `ti:other` (max 3)")
	assert.Contains(t, md, "**Total papers retrieved:** 7")

	assert.Contains(t, FormatSearchQueries(nil, 0), "⚠️ No queries generated.")
}

func TestFormatRetrievalStats(t *testing.T) {
	md := FormatRetrievalStats(10, 4, 0.8825)
	assert.Contains(t, md, "- **Total retrieved:** 10")
	assert.Contains(t, md, "- **Selected (above threshold):** 4")
	assert.Contains(t, md, "- **Threshold:** 0.8825")
}

func TestFormatReflection(t *testing.T) {
	md := FormatReflection(ReflectionVerdict{Sufficient: true, Notes: "well covered"})
	assert.Contains(t, md, "✅ **Sufficient papers found.**")
	assert.Contains(t, md, "well covered")

	md = FormatReflection(ReflectionVerdict{Sufficient: false})
	assert.Contains(t, md, "❌ **Needs more papers.**")
	assert.Contains(t, md, "\n-")
}

func TestFormatSummary(t *testing.T) {
	assert.Contains(t, FormatSummary("findings"), "### 🧾 Summary\nfindings")
	assert.Equal(t, "⚠️ No summary generated.", FormatSummary(""))
}

func TestStripJSONFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```": `{"a": 1}`,
		"```\n{\"a\": 1}\n```":     `{"a": 1}`,
		`{"a": 1}`:                 `{"a": 1}`,
		"  {\"a\": 1}  ":           `{"a": 1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, stripJSONFence(in))
	}
}

func TestPrettyJSON(t *testing.T) {
	out := PrettyJSON(map[string]int{"n": 1})
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, `"n": 1`)
}
