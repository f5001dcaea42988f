package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/agent"
	"github.com/BaSui01/researchflow/api"
	"github.com/BaSui01/researchflow/internal/eventbus"
	"github.com/BaSui01/researchflow/types"
)

// WorkflowRunner executes one research workflow run, publishing progress
// events to pub as it goes.
type WorkflowRunner interface {
	Run(ctx context.Context, query string, pub eventbus.Publisher) (*agent.State, error)
}

const defaultPollTimeout = 200 * time.Millisecond

// ResearchHandler 研究查询处理器，以 SSE 流式返回工作流事件
type ResearchHandler struct {
	runner      WorkflowRunner
	pollTimeout time.Duration
	logger      *zap.Logger
}

// NewResearchHandler 创建研究查询处理器
func NewResearchHandler(runner WorkflowRunner, pollTimeout time.Duration, logger *zap.Logger) *ResearchHandler {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &ResearchHandler{
		runner:      runner,
		pollTimeout: pollTimeout,
		logger:      logger.With(zap.String("component", "research_handler")),
	}
}

type runResult struct {
	state *agent.State
	err   error
}

// HandleQuery 处理 POST /api/v1/research/query
//
// The response is a server-sent event stream. Each workflow event becomes a
// `data:` frame carrying {stage, message, meta}. After the run completes one
// final frame carries either {"final_state": ...} or {"error": ...}, then an
// `event: end` frame terminates the stream.
func (h *ResearchHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "query must not be empty", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The run is cancelled through the request context: when the observer
	// disconnects, every in-flight node call sees ctx.Err.
	ctx := r.Context()
	bus := eventbus.NewBus()
	resultCh := make(chan runResult, 1)

	go func() {
		st, err := h.runner.Run(ctx, req.Query, bus)
		bus.Close()
		resultCh <- runResult{state: st, err: err}
	}()

	var res runResult
	finished := false
	for !finished {
		if ev, ok := bus.Receive(h.pollTimeout); ok {
			h.writeEvent(w, flusher, ev)
			continue
		}

		select {
		case res = <-resultCh:
			finished = true
		default:
		}

		if !finished && ctx.Err() != nil {
			h.logger.Info("observer disconnected, awaiting run cancellation")
			<-resultCh
			return
		}
	}

	// drain events published before the bus closed
	for {
		ev, ok := bus.TryReceive()
		if !ok {
			break
		}
		h.writeEvent(w, flusher, ev)
	}

	if res.err != nil {
		h.logger.Error("workflow run failed", zap.Error(res.err))
		h.writeData(w, flusher, map[string]any{"error": res.err.Error()})
	} else {
		h.writeData(w, flusher, map[string]any{"final_state": res.state})
	}

	fmt.Fprint(w, "event: end\ndata: {}\n\n")
	flusher.Flush()
}

func (h *ResearchHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev eventbus.Event) {
	h.writeData(w, flusher, ev)
}

func (h *ResearchHandler) writeData(w http.ResponseWriter, flusher http.Flusher, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("failed to marshal SSE payload", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
