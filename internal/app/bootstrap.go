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

package app

import (
	"context"
	"fmt"

	"cafe-navigator/internal/memory"
	"cafe-navigator/internal/model/llm"
	"cafe-navigator/internal/retrieval"
	"cafe-navigator/internal/storage/cache"
	"cafe-navigator/pkg/config"
	"cafe-navigator/pkg/log"
)

// defaultAgentID Postgres 记忆存储的 agent 作用域标识
const defaultAgentID = "cafe-navigator"

// Bootstrap 统一初始化：配置、日志、记忆存储、缓存、检索、生成客户端。
// cmd 内不写业务装配。
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    memory.Store
	Cache    cache.Store
	Searcher retrieval.Searcher
	Client   llm.Client
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}
	if cfg == nil {
		return &Bootstrap{Logger: logger}, nil
	}

	store, err := newMemoryStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	cacheStore, err := cache.NewCache(ctx, cfg.Cache)
	if err != nil {
		// 缓存是 advisory 的，构建失败只降级不中断
		logger.Warn("初始化缓存failed，继续无缓存运行", "error", err)
		cacheStore = nil
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化生成客户端failed: %w", err)
	}

	searcher, err := retrieval.NewSearcher(ctx, cfg.Retrieval, cfg.Model.APIKey)
	if err != nil {
		return nil, fmt.Errorf("初始化检索failed: %w", err)
	}
	searcher = retrieval.NewCachedSearcher(searcher, cacheStore,
		config.Duration(cfg.Cache.TTL, retrieval.DefaultCacheTTL), logger.Named("retrieval"))

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Cache:    cacheStore,
		Searcher: searcher,
		Client:   client,
	}, nil
}

// newMemoryStore type=memory 或空时用内存实现；type=postgres 用 pgx。
// Postgres 不可用时降级为内存存储（记忆是 best-effort，不因此拒绝启动）。
func newMemoryStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (memory.Store, error) {
	opts := memory.Options{
		TTL:      config.Duration(cfg.Memory.TTL, memory.DefaultTTL),
		MaxTurns: cfg.Memory.MaxTurns,
	}
	switch cfg.Memory.Type {
	case "", "memory":
		return memory.NewMemStore(opts), nil
	case "postgres":
		store, err := memory.NewPgStore(ctx, cfg.Memory.DSN, defaultAgentID, opts)
		if err != nil {
			logger.Warn("Postgres 记忆存储不可用，降级为内存存储", "error", err)
			return memory.NewMemStore(opts), nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported memory type: %s", cfg.Memory.Type)
	}
}

func newLLMClient(cfg *config.Config) (llm.Client, error) {
	client, err := llm.NewClient(cfg.Model.Provider, cfg.Model.Model, cfg.Model.APIKey, cfg.Model.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Model.RequestsPerMinute > 0 || cfg.Model.MaxConcurrent > 0 {
		return llm.NewRateLimitedClient(client, cfg.Model.RequestsPerMinute, cfg.Model.MaxConcurrent), nil
	}
	return client, nil
}
