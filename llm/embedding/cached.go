package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/internal/metrics"
)

// CachedProvider 在嵌入提供者前加一层内容寻址的 Redis 缓存.
// 反思循环会对保留的文档重复嵌入，缓存使重复嵌入廉价.
// 键为 model+text 的 SHA-256，与提供者实现无关.
type CachedProvider struct {
	inner     Provider
	cache     *cache.Manager
	model     string
	ttl       time.Duration
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewCachedProvider 创建缓存装饰器. collector 可为 nil.
func NewCachedProvider(inner Provider, cacheManager *cache.Manager, model string, ttl time.Duration, collector *metrics.Collector, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{
		inner:     inner,
		cache:     cacheManager,
		model:     model,
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "embedding_cache")),
		collector: collector,
	}
}

func (p *CachedProvider) Name() string {
	return p.inner.Name() + "-cached"
}

// EmbedQuery 查询嵌入不缓存（查询随反思笔记变化，命中率低）.
func (p *CachedProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return p.inner.EmbedQuery(ctx, query)
}

// EmbedDocuments 逐文档查缓存，仅将未命中的文档发往底层提供者，
// 结果按输入顺序合并返回.
func (p *CachedProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	result := make([][]float64, len(documents))
	var missing []string
	var missingIdx []int

	for i, doc := range documents {
		var vec []float64
		err := p.cache.GetJSON(ctx, p.cacheKey(doc), &vec)
		if err == nil && len(vec) > 0 {
			result[i] = vec
			p.recordHit()
			continue
		}
		if err != nil && !cache.IsCacheMiss(err) {
			// 缓存故障降级为直接嵌入
			p.logger.Warn("embedding cache read failed", zap.Error(err))
		}
		p.recordMiss()
		missing = append(missing, doc)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return result, nil
	}

	embedded, err := p.inner.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embedded), len(missing))
	}

	for j, vec := range embedded {
		i := missingIdx[j]
		result[i] = vec
		if err := p.cache.SetJSON(ctx, p.cacheKey(documents[i]), vec, p.ttl); err != nil {
			p.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

func (p *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(p.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (p *CachedProvider) recordHit() {
	if p.collector != nil {
		p.collector.RecordCacheHit("embedding")
	}
}

func (p *CachedProvider) recordMiss() {
	if p.collector != nil {
		p.collector.RecordCacheMiss("embedding")
	}
}
