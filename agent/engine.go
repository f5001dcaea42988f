package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/internal/telemetry"
	"github.com/BaSui01/researchflow/types"
)

// NodeID identifies a workflow node. The set of nodes is closed and known
// at build time.
type NodeID string

const (
	NodePlanner          NodeID = "planner"
	NodeRouter           NodeID = "router"
	NodeSearch           NodeID = "search_arxiv"
	NodeRelevance        NodeID = "relevance"
	NodeReflection       NodeID = "reflection"
	NodeReflectionRouter NodeID = "reflection_router"
	NodeSummarize        NodeID = "summarize"
	NodeEnd              NodeID = "end"
)

// allNodes is the closed node set used for graph validation.
var allNodes = map[NodeID]bool{
	NodePlanner:          true,
	NodeRouter:           true,
	NodeSearch:           true,
	NodeRelevance:        true,
	NodeReflection:       true,
	NodeReflectionRouter: true,
	NodeSummarize:        true,
	NodeEnd:              true,
}

// graph is the fixed topology: static successor edges for action nodes and
// decision-label transitions for decision nodes.
type graph struct {
	edges     map[NodeID]NodeID
	decisions map[NodeID]map[Decision]NodeID
}

// requiredDecisions lists the labels each decision node must cover.
var requiredDecisions = map[NodeID][]Decision{
	NodeRouter:           {DecisionMoreWork, DecisionProceed},
	NodeReflectionRouter: {DecisionSummarize, DecisionReplan},
}

// newGraph builds the workflow topology and validates it exhaustively:
// every action node has a successor, every decision node covers all of its
// labels, and every target is a known node.
func newGraph() (*graph, error) {
	g := &graph{
		edges: map[NodeID]NodeID{
			NodePlanner:    NodeRouter,
			NodeSearch:     NodeRouter,
			NodeRelevance:  NodeReflection,
			NodeReflection: NodeReflectionRouter,
			NodeSummarize:  NodeEnd,
		},
		decisions: map[NodeID]map[Decision]NodeID{
			NodeRouter: {
				DecisionMoreWork: NodeSearch,
				DecisionProceed:  NodeRelevance,
			},
			NodeReflectionRouter: {
				DecisionSummarize: NodeSummarize,
				DecisionReplan:    NodePlanner,
			},
		},
	}

	for node, next := range g.edges {
		if !allNodes[node] || !allNodes[next] {
			return nil, types.NewError(types.ErrGraphInvalid,
				fmt.Sprintf("edge references unknown node: %s -> %s", node, next))
		}
	}

	for node, labels := range requiredDecisions {
		table, ok := g.decisions[node]
		if !ok {
			return nil, types.NewError(types.ErrGraphInvalid,
				fmt.Sprintf("decision node %s has no transition table", node))
		}
		for _, label := range labels {
			next, ok := table[label]
			if !ok {
				return nil, types.NewError(types.ErrGraphInvalid,
					fmt.Sprintf("decision node %s missing transition for label %q", node, label))
			}
			if !allNodes[next] {
				return nil, types.NewError(types.ErrGraphInvalid,
					fmt.Sprintf("decision node %s label %q targets unknown node %s", node, label, next))
			}
		}
	}

	for node := range allNodes {
		if node == NodeEnd {
			continue
		}
		_, hasEdge := g.edges[node]
		_, hasDecision := g.decisions[node]
		if !hasEdge && !hasDecision {
			return nil, types.NewError(types.ErrGraphInvalid,
				fmt.Sprintf("node %s has no outgoing transition", node))
		}
	}

	return g, nil
}

func (g *graph) next(node NodeID) NodeID {
	return g.edges[node]
}

func (g *graph) decide(node NodeID, label Decision) (NodeID, error) {
	next, ok := g.decisions[node][label]
	if !ok {
		return "", types.NewError(types.ErrGraphInvalid,
			fmt.Sprintf("no transition for node %s with label %q", node, label))
	}
	return next, nil
}

// defaultMaxSteps bounds total node executions per run. A safety net
// against topology bugs, unrelated to the planning-cycle ceiling.
const defaultMaxSteps = 200

// Engine owns the fixed node graph and drives a run node-by-node on a
// single logical thread of control.
type Engine struct {
	planner    *Planner
	search     *Search
	relevance  *RelevanceFilter
	reflection *Reflection
	summarizer *Summarizer

	graph     *graph
	maxSteps  int
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewEngine assembles the workflow. Graph validation failures surface
// here, at construction. maxSteps <= 0 selects the default ceiling.
// collector may be nil.
func NewEngine(planner *Planner, search *Search, relevance *RelevanceFilter, reflection *Reflection, summarizer *Summarizer, maxSteps int, collector *metrics.Collector, logger *zap.Logger) (*Engine, error) {
	g, err := newGraph()
	if err != nil {
		return nil, err
	}
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Engine{
		planner:    planner,
		search:     search,
		relevance:  relevance,
		reflection: reflection,
		summarizer: summarizer,
		graph:      g,
		maxSteps:   maxSteps,
		collector:  collector,
		logger:     logger.With(zap.String("component", "engine")),
	}, nil
}

// Run executes the workflow for a query, publishing progress events to
// pub, and returns the final state. The run is cancelled through ctx:
// callers derive it from the request context so an observer disconnect
// stops in-flight work. On any node failure the error propagates and no
// partial-state salvage is attempted.
func (e *Engine) Run(ctx context.Context, query string, pub eventbus.Publisher) (*State, error) {
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))

	ctx, span := telemetry.Tracer("researchflow/agent").Start(ctx, "workflow.run")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()

	start := time.Now()
	st := NewState(query)

	logger.Info("workflow run starting", zap.String("query", query))

	final, err := e.drive(ctx, st, pub, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recordRun("error", time.Since(start), st.Count)
		logger.Error("workflow run failed", zap.Error(err))
		return nil, err
	}

	e.recordRun("success", time.Since(start), final.Count)
	logger.Info("workflow run finished",
		zap.Int("planning_cycles", final.Count),
		zap.Int("relevant_docs", len(final.RelevantDocs)),
		zap.Duration("elapsed", time.Since(start)))

	return final, nil
}

func (e *Engine) drive(ctx context.Context, st *State, pub eventbus.Publisher, logger *zap.Logger) (*State, error) {
	current := NodePlanner

	for steps := 0; current != NodeEnd; steps++ {
		if steps >= e.maxSteps {
			return nil, types.NewError(types.ErrStepBudget,
				fmt.Sprintf("workflow exceeded %d steps at node %s", e.maxSteps, current))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next NodeID
		var err error

		switch current {
		case NodePlanner:
			err = e.runNode(ctx, current, st, pub, e.planner.Run)
			next = e.graph.next(current)
		case NodeSearch:
			err = e.runNode(ctx, current, st, pub, e.search.Run)
			next = e.graph.next(current)
		case NodeRelevance:
			err = e.runNode(ctx, current, st, pub, e.relevance.Run)
			next = e.graph.next(current)
		case NodeReflection:
			err = e.runNode(ctx, current, st, pub, e.reflection.Run)
			next = e.graph.next(current)
		case NodeSummarize:
			err = e.runNode(ctx, current, st, pub, e.summarizer.Run)
			next = e.graph.next(current)
		case NodeRouter:
			next, err = e.graph.decide(current, routeAfterPlanning(st))
		case NodeReflectionRouter:
			next, err = e.graph.decide(current, routeAfterReflection(st))
		default:
			err = types.NewError(types.ErrGraphInvalid, fmt.Sprintf("unknown node %s", current))
		}

		if err != nil {
			return nil, err
		}

		logger.Debug("node transition",
			zap.String("from", string(current)),
			zap.String("to", string(next)))
		if e.collector != nil {
			e.collector.RecordNodeTransition(string(current), string(next))
		}
		current = next
	}

	return st, nil
}

type nodeFunc func(ctx context.Context, st *State, pub eventbus.Publisher) error

func (e *Engine) runNode(ctx context.Context, node NodeID, st *State, pub eventbus.Publisher, fn nodeFunc) error {
	err := fn(ctx, st, pub)
	if e.collector != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		e.collector.RecordNodeExecution(string(node), status)
	}
	return err
}

func (e *Engine) recordRun(status string, elapsed time.Duration, cycles int) {
	if e.collector != nil {
		e.collector.RecordWorkflowRun(status, elapsed, cycles)
	}
}
