package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:           8080,
			MetricsPort:        9090,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       10 * time.Minute, // SSE 长连接
			ShutdownTimeout:    15 * time.Second,
			CORSAllowedOrigins: []string{"*"},
			AllowQueryAPIKey:   false,
			RateLimitRPS:       10,
			RateLimitBurst:     20,
		},
		Workflow: WorkflowConfig{
			MaxPlanningCycles:  3,
			MaxSteps:           200,
			ThresholdMargin:    0.005,
			MaxResultsPerQuery: 5,
			EventPollTimeout:   200 * time.Millisecond,
		},
		LLM: LLMConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:    "text-embedding-004",
			Timeout:  30 * time.Second,
			CacheTTL: 24 * time.Hour,
		},
		Arxiv: ArxivConfig{
			BaseURL:    "https://export.arxiv.org/api/query",
			MaxResults: 5,
			Timeout:    30 * time.Second,
			RetryCount: 3,
			RetryDelay: 2 * time.Second,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 10,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "researchflow",
			SampleRate:  1.0,
		},
	}
}
