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

package memory

import (
	"context"
	"strings"

	"cafe-navigator/internal/emotion"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/log"
)

// MemoryContext 从当前轮次派生的上下文，每次查询重建，从不持久化
type MemoryContext struct {
	RecentTurns          []*Turn
	InheritedRequestType common.RequestType
	InheritedEntity      common.Entity
	ContextString        string
}

// HasInheritance 是否有可继承的实体或子话题
func (m *MemoryContext) HasInheritance() bool {
	return m.InheritedEntity != "" || m.InheritedRequestType != ""
}

// ContextBuilder 在查询入口处重建 MemoryContext；存储不可用时
// 返回空上下文，请求照常处理（无状态降级）
type ContextBuilder struct {
	store  Store
	limit  int
	logger *log.Logger
}

// NewContextBuilder 创建 ContextBuilder，limit <=0 使用默认 10
func NewContextBuilder(store Store, limit int, logger *log.Logger) *ContextBuilder {
	if limit <= 0 {
		limit = 10
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &ContextBuilder{store: store, limit: limit, logger: logger}
}

// Build 拉取最近轮次并派生继承信息
func (b *ContextBuilder) Build(ctx context.Context, sessionID string) *MemoryContext {
	mc := &MemoryContext{}
	if sessionID == "" || b.store == nil {
		return mc
	}
	turns, err := b.store.RecentTurns(ctx, sessionID, b.limit)
	if err != nil {
		b.logger.Warn("记忆读取失败，降级为无状态", "session_id", sessionID, "error", err)
		return mc
	}
	mc.RecentTurns = turns

	// 新→旧扫描，取最近一次确定的实体与子话题
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if mc.InheritedEntity == "" {
			if t.Entity != "" && t.Entity != common.EntityGeneral {
				mc.InheritedEntity = t.Entity
			} else if e := common.DetectEntity(t.Content); e != common.EntityGeneral {
				mc.InheritedEntity = e
			}
		}
		if mc.InheritedRequestType == "" && t.RequestType != "" {
			mc.InheritedRequestType = t.RequestType
		}
		if mc.InheritedEntity != "" && mc.InheritedRequestType != "" {
			break
		}
	}

	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(emotion.StripAll(t.Content))
		sb.WriteString("\n")
	}
	mc.ContextString = strings.TrimRight(sb.String(), "\n")
	return mc
}

// emotionFrom 列值到情绪的转换；空串保持为空（轮次无情绪标注）
func emotionFrom(s string) emotion.Emotion {
	if s == "" {
		return ""
	}
	return emotion.Normalize(s)
}
