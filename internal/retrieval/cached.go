// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrieval

import (
	"context"
	"fmt"
	"time"

	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/internal/storage/cache"
	"cafe-navigator/pkg/errors"
	"cafe-navigator/pkg/log"
	"cafe-navigator/pkg/metrics"
)

// DefaultCacheTTL 检索结果缓存时长。场馆知识更新频率低，短 TTL 足够。
const DefaultCacheTTL = 45 * time.Second

// CachedSearcher 给任意 Searcher 加一层 advisory 缓存：
// 缓存读写错误只记日志，检索语义不变。
type CachedSearcher struct {
	inner  Searcher
	cache  cache.Store
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedSearcher 包装检索后端。store 为 nil 时原样返回 inner。
func NewCachedSearcher(inner Searcher, store cache.Store, ttl time.Duration, logger *log.Logger) Searcher {
	if store == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &CachedSearcher{inner: inner, cache: store, ttl: ttl, logger: logger}
}

// Search 实现 Searcher
func (s *CachedSearcher) Search(ctx context.Context, query string, language common.Language, opts SearchOptions) (SearchResult, error) {
	key := cacheKey(query, language, opts)

	var cached SearchResult
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		metrics.CacheHitTotal.Inc()
		return cached, nil
	} else if !errors.Is(err, errors.ErrNotFound) && !errors.Is(err, errors.ErrExpired) {
		// 未命中之外的读取错误才值得记录
		s.logger.Warn("缓存读取失败", "key", key, "error", err)
	}
	metrics.CacheMissTotal.Inc()

	result, err := s.inner.Search(ctx, query, language, opts)
	if err != nil {
		return result, err
	}

	if setErr := s.cache.Set(ctx, key, result, s.ttl); setErr != nil {
		s.logger.Warn("缓存写入失败", "key", key, "error", setErr)
	}
	return result, nil
}

func cacheKey(query string, language common.Language, opts SearchOptions) string {
	return fmt.Sprintf("search:%s|%s|%s|%d|%.2f", query, language, opts.Category, opts.Limit, opts.Threshold)
}
