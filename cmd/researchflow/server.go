package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/agent"
	"github.com/BaSui01/researchflow/api/handlers"
	"github.com/BaSui01/researchflow/config"
	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/internal/server"
	"github.com/BaSui01/researchflow/internal/telemetry"
	"github.com/BaSui01/researchflow/llm"
	"github.com/BaSui01/researchflow/llm/embedding"
	"github.com/BaSui01/researchflow/search/arxiv"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 ResearchFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	researchHandler *handlers.ResearchHandler

	// 基础设施
	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager
	otelProviders    *telemetry.Providers

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("researchflow", s.logger)

	// 2. 初始化缓存（可选，未配置 Redis 时跳过）
	s.initCache()

	// 3. 组装研究工作流并初始化 handlers
	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("cache_enabled", s.cacheManager != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initCache 初始化 Redis 缓存。连接失败时降级为无缓存运行。
func (s *Server) initCache() {
	if s.cfg.Redis.Addr == "" {
		s.logger.Info("Redis not configured, embedding cache disabled")
		return
	}

	manager, err := cache.NewManager(cache.Config{
		Addr:       s.cfg.Redis.Addr,
		Password:   s.cfg.Redis.Password,
		DB:         s.cfg.Redis.DB,
		DefaultTTL: s.cfg.Embedding.CacheTTL,
		PoolSize:   s.cfg.Redis.PoolSize,
	}, s.logger)
	if err != nil {
		s.logger.Warn("cache unavailable, running without embedding cache", zap.Error(err))
		return
	}
	s.cacheManager = manager
}

// initHandlers 组装工作流引擎并初始化所有 handlers
func (s *Server) initHandlers() error {
	if s.cfg.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured")
	}

	// LLM 客户端
	llmClient := llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:      s.cfg.LLM.APIKey,
		BaseURL:     s.cfg.LLM.BaseURL,
		Model:       s.cfg.LLM.Model,
		Temperature: s.cfg.LLM.Temperature,
		Timeout:     s.cfg.LLM.Timeout,
	}, s.metricsCollector, s.logger)

	// 嵌入提供者（API key 未单独配置时复用 LLM 的 key）
	embeddingKey := s.cfg.Embedding.APIKey
	if embeddingKey == "" {
		embeddingKey = s.cfg.LLM.APIKey
	}
	var embedder embedding.Provider = embedding.NewGeminiProvider(embedding.GeminiConfig{
		APIKey:  embeddingKey,
		BaseURL: s.cfg.Embedding.BaseURL,
		Model:   s.cfg.Embedding.Model,
		Timeout: s.cfg.Embedding.Timeout,
	})
	if s.cacheManager != nil {
		embedder = embedding.NewCachedProvider(embedder, s.cacheManager,
			s.cfg.Embedding.Model, s.cfg.Embedding.CacheTTL, s.metricsCollector, s.logger)
	}

	// arXiv 检索客户端
	arxivClient := arxiv.NewClient(arxiv.Config{
		BaseURL:    s.cfg.Arxiv.BaseURL,
		MaxResults: s.cfg.Arxiv.MaxResults,
		Timeout:    s.cfg.Arxiv.Timeout,
		RetryCount: s.cfg.Arxiv.RetryCount,
		RetryDelay: s.cfg.Arxiv.RetryDelay,
	}, s.logger)

	// 工作流节点 + 引擎
	engine, err := agent.NewEngine(
		agent.NewPlanner(llmClient, s.logger),
		agent.NewSearch(llmClient, arxivClient, s.cfg.Workflow.MaxResultsPerQuery, s.metricsCollector, s.logger),
		agent.NewRelevanceFilter(embedder, s.cfg.Workflow.ThresholdMargin, s.metricsCollector, s.logger),
		agent.NewReflection(llmClient, s.cfg.Workflow.MaxPlanningCycles, s.logger),
		agent.NewSummarizer(llmClient, s.logger),
		s.cfg.Workflow.MaxSteps,
		s.metricsCollector,
		s.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to build workflow engine: %w", err)
	}

	var pinger handlers.Pinger
	if s.cacheManager != nil {
		pinger = s.cacheManager
	}
	s.healthHandler = handlers.NewHealthHandler("researchflow", Version, pinger, s.logger)
	s.researchHandler = handlers.NewResearchHandler(engine, s.cfg.Workflow.EventPollTimeout, s.logger)

	s.logger.Info("Handlers initialized", zap.String("llm_model", s.cfg.LLM.Model))
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.healthHandler.HandleRoot)
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion)

	mux.HandleFunc("/api/v1/research/query", s.researchHandler.HandleQuery)

	skipAuthPaths := []string{"/", "/health", "/healthz", "/ready", "/version"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout, // SSE 长连接需要足够大
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
