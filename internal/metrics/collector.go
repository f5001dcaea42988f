// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 工作流指标
	workflowRunsTotal    *prometheus.CounterVec
	workflowRunDuration  *prometheus.HistogramVec
	nodeExecutionsTotal  *prometheus.CounterVec
	nodeTransitionsTotal *prometheus.CounterVec
	planningCycles       prometheus.Histogram

	// 检索指标
	searchRequestsTotal *prometheus.CounterVec
	documentsRetrieved  prometheus.Counter
	documentsSelected   prometheus.Counter

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWith 创建指标收集器并注册到指定 Registry（测试用）
func NewCollectorWith(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 工作流指标
	c.workflowRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of research workflow runs",
		},
		[]string{"status"},
	)

	c.workflowRunDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Research workflow run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_node_executions_total",
			Help:      "Total number of workflow node executions",
		},
		[]string{"node", "status"},
	)

	c.nodeTransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_node_transitions_total",
			Help:      "Total number of workflow node transitions",
		},
		[]string{"from_node", "to_node"},
	)

	c.planningCycles = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_planning_cycles",
			Help:      "Number of planning cycles per completed run",
			Buckets:   []float64{1, 2, 3},
		},
	)

	// 检索指标
	c.searchRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of literature search requests",
		},
		[]string{"source", "status"},
	)

	c.documentsRetrieved = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_retrieved_total",
			Help:      "Total number of documents retrieved from search",
		},
	)

	c.documentsSelected = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_selected_total",
			Help:      "Total number of documents selected by the relevance filter",
		},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🔬 工作流指标记录
// =============================================================================

// RecordWorkflowRun 记录一次完整的工作流运行
func (c *Collector) RecordWorkflowRun(status string, duration time.Duration, planningCycles int) {
	c.workflowRunsTotal.WithLabelValues(status).Inc()
	c.workflowRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.planningCycles.Observe(float64(planningCycles))
}

// RecordNodeExecution 记录节点执行
func (c *Collector) RecordNodeExecution(node, status string) {
	c.nodeExecutionsTotal.WithLabelValues(node, status).Inc()
}

// RecordNodeTransition 记录节点转换
func (c *Collector) RecordNodeTransition(fromNode, toNode string) {
	c.nodeTransitionsTotal.WithLabelValues(fromNode, toNode).Inc()
}

// =============================================================================
// 📚 检索指标记录
// =============================================================================

// RecordSearchRequest 记录一次文献检索请求
func (c *Collector) RecordSearchRequest(source, status string) {
	c.searchRequestsTotal.WithLabelValues(source, status).Inc()
}

// RecordDocumentsRetrieved 记录检索到的文档数
func (c *Collector) RecordDocumentsRetrieved(count int) {
	c.documentsRetrieved.Add(float64(count))
}

// RecordDocumentsSelected 记录相关性筛选选中的文档数
func (c *Collector) RecordDocumentsSelected(count int) {
	c.documentsSelected.Add(float64(count))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
