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

// Package query 上下文查询解析管线：分类 → 记忆上下文 → 消歧 →
// 改写 → 检索 → 重排 → 话题过滤 → 合成 → 记忆回写。
// 各阶段是对不可变中间值的显式顺序处理，不是互相持有引用的 agent 网。
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cafe-navigator/internal/emotion"
	"cafe-navigator/internal/memory"
	"cafe-navigator/internal/model/llm"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/internal/retrieval"
	"cafe-navigator/pkg/config"
	"cafe-navigator/pkg/log"
	"cafe-navigator/pkg/metrics"
	"cafe-navigator/pkg/tracing"
)

// Resolver 查询解析器，对外唯一入口 ResolveQuery。
// 进程内无状态：共享可变资源只有注入的记忆存储。
type Resolver struct {
	classifier  *Classifier
	builder     *memory.ContextBuilder
	clarifier   *Clarifier
	enhancer    *Enhancer
	searcher    retrieval.Searcher
	scorer      *Scorer
	filter      *TopicFilter
	synthesizer *Synthesizer
	store       memory.Store

	classifyTimeout time.Duration
	retrieveTimeout time.Duration
	generateTimeout time.Duration
	retrieveLimit   int
	turnTTL         time.Duration

	logger *log.Logger
}

// ResolverOptions Resolver 依赖项
type ResolverOptions struct {
	Client   llm.Client
	Searcher retrieval.Searcher
	Store    memory.Store // 可为 nil，无状态运行
	Config   *config.Config
	Logger   *log.Logger
}

// NewResolver 组装管线
func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	var cfg config.Config
	if opts.Config != nil {
		cfg = *opts.Config
	}

	retrieveLimit := cfg.Retrieval.TopK
	if retrieveLimit <= 0 {
		retrieveLimit = 10
	}

	return &Resolver{
		classifier:  NewClassifier(opts.Client, logger.Named("classifier")),
		builder:     memory.NewContextBuilder(opts.Store, cfg.Pipeline.RecentTurnsLimit, logger.Named("memory")),
		clarifier:   NewClarifier(opts.Store, logger.Named("clarifier")),
		enhancer:    NewEnhancer(),
		searcher:    opts.Searcher,
		scorer:      NewScorer(cfg.Scoring),
		filter:      NewTopicFilter(),
		synthesizer: NewSynthesizer(opts.Client, logger.Named("synthesizer")),
		store:       opts.Store,

		classifyTimeout: config.Duration(cfg.Pipeline.ClassifyTimeout, 5*time.Second),
		retrieveTimeout: config.Duration(cfg.Pipeline.RetrieveTimeout, 5*time.Second),
		generateTimeout: config.Duration(cfg.Pipeline.GenerateTimeout, 15*time.Second),
		retrieveLimit:   retrieveLimit,
		turnTTL:         config.Duration(cfg.Memory.TTL, memory.DefaultTTL),

		logger: logger,
	}
}

// ResolveQuery 解析一条查询。永不返回错误：所有失败路径
// 终结于带 "fallback" 来源的降级 UnifiedResponse。
func (r *Resolver) ResolveQuery(ctx context.Context, queryText string, language common.Language, sessionID string) common.UnifiedResponse {
	start := time.Now()
	ctx, span := tracing.StartQuerySpan(ctx, sessionID, string(language))
	defer span.End()

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		r.logger.Debug("拒绝空查询", "error", common.NewPipelineError("validate", "查询文本为空", common.ErrInvalidInput))
		resp := r.synthesizer.Fallback(defaultLanguage(language), "empty_query")
		r.observe(common.CategoryGeneral, "fallback", language, start)
		return resp
	}

	// 阶段1：分类（确定性前置匹配 + LLM 兜底，从不失败）
	classification := r.runClassify(ctx, queryText, language)

	// 阶段2：记忆上下文（存储不可用 ⇒ 空上下文，无状态降级）
	mc := r.buildContext(ctx, sessionID)

	// 阶段3：消歧
	if r.clarifier.IsOtherOptionQuery(queryText) {
		resp := r.clarifier.ResolveOther(ctx, sessionID, classification.Language)
		r.writeBack(ctx, sessionID, queryText, classification, resp)
		r.observe(classification.Category, "clarification", classification.Language, start)
		return resp
	}
	if r.clarifier.IsAmbiguous(queryText) && mc.InheritedEntity == "" {
		r.writeUserTurn(ctx, sessionID, queryText, classification)
		resp := r.clarifier.Clarify(ctx, queryText, sessionID, classification.Language)
		r.observe(classification.Category, "clarification", classification.Language, start)
		return resp
	}

	// 阶段4：短上下文改写
	effectiveQuery := queryText
	if enhanced, ok := r.enhancer.Enhance(queryText, mc, classification.Language); ok {
		r.logger.Debug("查询已补全", "original", queryText, "enhanced", enhanced)
		effectiveQuery = enhanced
	}

	// memory-recall 不走检索，直接基于上下文作答
	if classification.Category == common.CategoryMemory {
		resp := r.answerFromMemory(ctx, effectiveQuery, mc, classification)
		r.writeBack(ctx, sessionID, queryText, classification, resp)
		r.observe(classification.Category, outcomeOf(resp), classification.Language, start)
		return resp
	}

	// 阶段5：检索
	fragments, err := r.runRetrieve(ctx, effectiveQuery, classification)
	if err != nil {
		if !errors.Is(err, common.ErrRetrievalEmpty) {
			if perr, ok := common.GetPipelineError(err); ok {
				r.logger.Warn("检索失败，按无片段处理", "stage", perr.Stage, "error", err)
			} else {
				r.logger.Warn("检索失败，按无片段处理", "error", err)
			}
		}
		resp := r.synthesizer.Fallback(classification.Language, "retrieval_empty")
		r.writeBack(ctx, sessionID, queryText, classification, resp)
		r.observe(classification.Category, "fallback", classification.Language, start)
		return resp
	}

	// 阶段6+7：重排、话题过滤。查询指明实体时剔除异实体片段。
	scored := r.runScore(ctx, fragments, effectiveQuery, classification)
	scored = restrictToEntity(scored, common.DetectEntity(effectiveQuery))
	filtered := r.runFilter(ctx, scored, classification)

	// 阶段8：合成
	resp := r.runSynthesize(ctx, SynthesisInput{
		Query:          effectiveQuery,
		FilteredText:   filtered.Text,
		ContextString:  mc.ContextString,
		Classification: classification,
		Sources:        sourcesOf(scored),
	})

	// 阶段9：记忆回写（尽力而为）
	r.writeBack(ctx, sessionID, queryText, classification, resp)
	r.observe(classification.Category, outcomeOf(resp), classification.Language, start)
	return resp
}

func (r *Resolver) runClassify(ctx context.Context, queryText string, language common.Language) common.Classification {
	ctx, span := tracing.StartStageSpan(ctx, "classify")
	defer span.End()
	stageStart := time.Now()

	cctx, cancel := context.WithTimeout(ctx, r.classifyTimeout)
	defer cancel()
	classification := r.classifier.Classify(cctx, queryText, language)

	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(stageStart).Seconds())
	return classification
}

func (r *Resolver) buildContext(ctx context.Context, sessionID string) *memory.MemoryContext {
	ctx, span := tracing.StartStageSpan(ctx, "memory_context")
	defer span.End()
	stageStart := time.Now()

	mc := r.builder.Build(ctx, sessionID)

	metrics.StageDuration.WithLabelValues("memory_context").Observe(time.Since(stageStart).Seconds())
	return mc
}

func (r *Resolver) runRetrieve(ctx context.Context, queryText string, classification common.Classification) ([]common.KnowledgeFragment, error) {
	if r.searcher == nil {
		return nil, common.NewPipelineError("retrieve", "未配置检索后端", common.ErrRetrievalFailed)
	}
	ctx, span := tracing.StartStageSpan(ctx, "retrieve")
	defer span.End()
	stageStart := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("retrieve").Observe(time.Since(stageStart).Seconds())
	}()

	rctx, cancel := context.WithTimeout(ctx, r.retrieveTimeout)
	defer cancel()

	category := ""
	if classification.Category != common.CategoryGeneral {
		category = string(classification.Category)
	}
	result, err := r.searcher.Search(rctx, queryText, classification.Language, retrieval.SearchOptions{
		Category: category,
		Limit:    r.retrieveLimit,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, common.NewPipelineError("retrieve", "语义检索超时", common.ErrTimeout)
		}
		return nil, common.NewPipelineError("retrieve", "语义检索调用失败", fmt.Errorf("%w: %v", common.ErrRetrievalFailed, err))
	}
	if !result.Success || len(result.Fragments) == 0 {
		return nil, common.NewPipelineError("retrieve", "检索无结果", common.ErrRetrievalEmpty)
	}
	return result.Fragments, nil
}

func (r *Resolver) runScore(ctx context.Context, fragments []common.KnowledgeFragment, queryText string, classification common.Classification) []common.ScoredFragment {
	_, span := tracing.StartStageSpan(ctx, "score")
	defer span.End()
	stageStart := time.Now()

	scored := r.scorer.Score(fragments, queryText, classification.Category, classification.Language)

	metrics.StageDuration.WithLabelValues("score").Observe(time.Since(stageStart).Seconds())
	return scored
}

func (r *Resolver) runFilter(ctx context.Context, scored []common.ScoredFragment, classification common.Classification) FilterResult {
	_, span := tracing.StartStageSpan(ctx, "filter")
	defer span.End()
	stageStart := time.Now()

	var sb strings.Builder
	for _, sf := range scored {
		sb.WriteString(sf.Content)
		sb.WriteString("\n")
	}
	result := r.filter.Filter(strings.TrimRight(sb.String(), "\n"), classification.RequestType, classification.Language)

	metrics.StageDuration.WithLabelValues("filter").Observe(time.Since(stageStart).Seconds())
	return result
}

func (r *Resolver) runSynthesize(ctx context.Context, input SynthesisInput) common.UnifiedResponse {
	ctx, span := tracing.StartStageSpan(ctx, "synthesize")
	defer span.End()
	stageStart := time.Now()

	gctx, cancel := context.WithTimeout(ctx, r.generateTimeout)
	defer cancel()
	resp := r.synthesizer.Synthesize(gctx, input)

	metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(stageStart).Seconds())
	return resp
}

// answerFromMemory memory-recall 类查询直接基于最近轮次作答
func (r *Resolver) answerFromMemory(ctx context.Context, queryText string, mc *memory.MemoryContext, classification common.Classification) common.UnifiedResponse {
	if mc == nil || len(mc.RecentTurns) == 0 {
		return r.synthesizer.Fallback(classification.Language, "no_memory")
	}
	return r.runSynthesize(ctx, SynthesisInput{
		Query:          queryText,
		ContextString:  mc.ContextString,
		Classification: classification,
		Sources:        []string{"memory"},
	})
}

// writeBack 回写用户轮与助手轮。写失败只记日志。
func (r *Resolver) writeBack(ctx context.Context, sessionID, queryText string, classification common.Classification, resp common.UnifiedResponse) {
	if r.store == nil || sessionID == "" {
		return
	}
	r.writeUserTurn(ctx, sessionID, queryText, classification)

	now := time.Now()
	assistant := &memory.Turn{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Role:        memory.RoleAssistant,
		Content:     resp.Text,
		Emotion:     resp.Emotion,
		RequestType: classification.RequestType,
		Entity:      common.DetectEntity(emotion.StripAll(resp.Text)),
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.turnTTL),
	}
	if err := r.store.AddTurn(ctx, assistant); err != nil {
		r.logger.Warn("助手轮写入失败", "session_id", sessionID,
			"error", common.NewPipelineError("memory_write", "记忆回写失败", fmt.Errorf("%w: %v", common.ErrMemoryFailed, err)))
		return
	}
	metrics.MemoryTurnsTotal.WithLabelValues(memory.RoleAssistant).Inc()
}

func (r *Resolver) writeUserTurn(ctx context.Context, sessionID, queryText string, classification common.Classification) {
	if r.store == nil || sessionID == "" {
		return
	}
	now := time.Now()
	user := &memory.Turn{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Role:        memory.RoleUser,
		Content:     queryText,
		RequestType: classification.RequestType,
		Entity:      common.DetectEntity(queryText),
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.turnTTL),
	}
	if err := r.store.AddTurn(ctx, user); err != nil {
		r.logger.Warn("用户轮写入失败", "session_id", sessionID,
			"error", common.NewPipelineError("memory_write", "记忆回写失败", fmt.Errorf("%w: %v", common.ErrMemoryFailed, err)))
		return
	}
	metrics.MemoryTurnsTotal.WithLabelValues(memory.RoleUser).Inc()
}

func (r *Resolver) observe(category common.Category, outcome string, language common.Language, start time.Time) {
	metrics.QueryTotal.WithLabelValues(string(category), outcome).Inc()
	metrics.QueryDuration.WithLabelValues(string(defaultLanguage(language))).Observe(time.Since(start).Seconds())
}

func outcomeOf(resp common.UnifiedResponse) string {
	for _, s := range resp.Meta.Sources {
		if s == "fallback" {
			return "fallback"
		}
	}
	return "ok"
}

func sourcesOf(scored []common.ScoredFragment) []string {
	sources := make([]string, 0, len(scored))
	seen := make(map[string]bool)
	for _, sf := range scored {
		src := "retrieval"
		if sf.Title != "" {
			src = sf.Title
		} else if sf.Category != "" {
			src = sf.Category
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return []string{"retrieval"}
	}
	return sources
}

// restrictToEntity 剔除归属于其他具体设施的片段；全剔空时保留原列表
func restrictToEntity(scored []common.ScoredFragment, queryEntity common.Entity) []common.ScoredFragment {
	if queryEntity == common.EntityGeneral {
		return scored
	}
	kept := make([]common.ScoredFragment, 0, len(scored))
	for _, sf := range scored {
		if sf.Entity == queryEntity || sf.Entity == common.EntityGeneral {
			kept = append(kept, sf)
		}
	}
	if len(kept) == 0 {
		return scored
	}
	return kept
}

func defaultLanguage(language common.Language) common.Language {
	if language == "" {
		return common.LangEN
	}
	return language
}
