package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/BaSui01/researchflow/llm"
	"github.com/BaSui01/researchflow/search/arxiv"
)

// recorder captures published events in order.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Stage   string
	Message string
	Meta    map[string]any
}

func (r *recorder) Publish(stage, message string, meta map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Stage: stage, Message: message, Meta: meta})
}

func (r *recorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Stage
	}
	return out
}

func (r *recorder) find(stage string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Stage == stage {
			return ev, true
		}
	}
	return recordedEvent{}, false
}

// scriptedLLM returns canned responses in call order.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) next(prompt string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.responses) == 0 {
		return ""
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp
}

func (s *scriptedLLM) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: s.next(req.Prompt)}, nil
}

func (s *scriptedLLM) InvokeStream(ctx context.Context, req llm.Request, onToken llm.TokenFunc) (*llm.Response, error) {
	text := s.next(req.Prompt)
	if onToken != nil && text != "" {
		onToken(text)
	}
	return &llm.Response{Text: text}, nil
}

func (s *scriptedLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// promptKeyedLLM answers by matching the prompt against known templates,
// so full engine runs need no call-order bookkeeping.
type promptKeyedLLM struct {
	planJSON       string
	expansionJSON  string
	reflectionJSON func(callCount int) string
	summaryText    string

	mu              sync.Mutex
	reflectionCalls int
}

func (p *promptKeyedLLM) Name() string { return "prompt-keyed" }

func (p *promptKeyedLLM) respond(prompt string) string {
	switch {
	case strings.Contains(prompt, "research agent planner"):
		return p.planJSON
	case strings.Contains(prompt, "constructing arxiv API queries"):
		return p.expansionJSON
	case strings.Contains(prompt, "evaluating whether the collected papers are sufficient"):
		p.mu.Lock()
		p.reflectionCalls++
		n := p.reflectionCalls
		p.mu.Unlock()
		return p.reflectionJSON(n)
	case strings.Contains(prompt, "summarizing the findings"):
		return p.summaryText
	default:
		return ""
	}
}

func (p *promptKeyedLLM) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: p.respond(req.Prompt)}, nil
}

func (p *promptKeyedLLM) InvokeStream(ctx context.Context, req llm.Request, onToken llm.TokenFunc) (*llm.Response, error) {
	text := p.respond(req.Prompt)
	if onToken != nil && text != "" {
		onToken(text)
	}
	return &llm.Response{Text: text}, nil
}

// fakeSearchProvider returns preset papers per query and records calls.
type fakeSearchProvider struct {
	mu      sync.Mutex
	papers  map[string][]arxiv.Paper
	queries []string
	err     error
}

func (f *fakeSearchProvider) Name() string { return "arxiv" }

func (f *fakeSearchProvider) Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.papers[query], nil
}

// fakeEmbedder returns preset vectors keyed by exact text.
type fakeEmbedder struct {
	queryVec []float64
	docVecs  map[string][]float64
	err      error
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.queryVec, nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(documents))
	for i, doc := range documents {
		out[i] = f.docVecs[doc]
	}
	return out, nil
}

const testPlanJSON = `{
  "plan": [
    {
      "tool": "arxiv_search",
      "purpose": "find recent work",
      "query": {
        "search_terms": ["LLM vulnerabilities"],
        "additional_focus": ["prompt injection"]
      },
      "rationale": "directly relevant"
    }
  ],
  "reflection": {
    "purpose": "check coverage",
    "analysis_focus": ["attack surfaces", "mitigations"],
    "rationale": "need breadth"
  }
}`

const testExpansionJSON = `[
  {"search_query": "all:LLM vulnerabilities", "max_results": 5},
  {"search_query": "abs:prompt injection", "max_results": 5}
]`
