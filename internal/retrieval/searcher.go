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

// Package retrieval 语义检索适配层。向量索引与 embedding 属于外部协作者，
// core 只通过 Searcher 消费排好序的文本片段。
package retrieval

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"

	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/config"
)

// SearchOptions 单次检索参数
type SearchOptions struct {
	Category  string  // 限定大类，空表示不限定
	Limit     int     // 返回片段上限
	Threshold float64 // 最低相似度
}

// SearchResult 检索结果。Success=false 视为"无片段"而非致命错误。
type SearchResult struct {
	Success   bool
	Fragments []common.KnowledgeFragment
}

// Searcher 语义检索抽象：search(query, language, category?) -> 排序片段
type Searcher interface {
	Search(ctx context.Context, query string, language common.Language, opts SearchOptions) (SearchResult, error)
}

// NewSearcher 根据配置创建检索后端，统一入口
func NewSearcher(ctx context.Context, cfg config.RetrievalConfig, apiKey string) (Searcher, error) {
	switch cfg.Type {
	case "", "redis-vector":
		opts := &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       0,
		}
		if opts.Addr == "" {
			opts.Addr = "localhost:6379"
		}
		if cfg.DB != "" {
			var db int
			if _, err := fmt.Sscanf(cfg.DB, "%d", &db); err == nil && db >= 0 {
				opts.DB = db
			}
		}
		// Redis Stack 向量检索需 Protocol 2、UnstableResp3 true（见 eino-ext retriever 注释）
		opts.Protocol = 2
		opts.UnstableResp3 = true

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}

		index := cfg.Collection
		if index == "" {
			index = "knowledge"
		}
		embedder := NewOpenAIEmbedder(apiKey, "", 0)
		ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
			Client:    client,
			Index:     index,
			TopK:      cfg.TopK,
			Embedding: embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis retriever: %w", err)
		}
		return NewEinoSearcher(ret, cfg.Threshold), nil
	case "http":
		return NewHTTPSearcher(cfg.Endpoint, config.Duration(cfg.Timeout, 0)), nil
	default:
		return nil, fmt.Errorf("unsupported retrieval type: %s", cfg.Type)
	}
}
