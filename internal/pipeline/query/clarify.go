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

package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cafe-navigator/internal/emotion"
	"cafe-navigator/internal/memory"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/log"
	"cafe-navigator/pkg/metrics"
)

// ambiguityTypeCafe 两家咖啡共享 "カフェ" 词面的歧义类型
const ambiguityTypeCafe = "cafe"

// Clarifier 消歧管理器。状态机 Idle→AwaitingClarification→Idle，
// 状态只存在于记忆存储（ClarificationRecord 挂在轮次上），
// 过期由记忆 TTL 承担。
type Clarifier struct {
	name   string
	store  memory.Store
	logger *log.Logger
}

// NewClarifier 创建消歧管理器；store 可为 nil（无状态模式，只出澄清问题）
func NewClarifier(store memory.Store, logger *log.Logger) *Clarifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Clarifier{
		name:   "clarifier",
		store:  store,
		logger: logger,
	}
}

// Name 返回组件名称
func (c *Clarifier) Name() string {
	return c.name
}

// genericCafeTerms 歧义触发词：出现且无具体实体标记时需澄清
var genericCafeTerms = []string{"カフェ", "cafe", "coffee shop", "喫茶"}

// otherOptionPatterns "另一个" 指代模式
var otherOptionPatterns = []string{
	"もう一つ", "もう片方", "もう一方", "もうひとつ", "別の方", "他の方",
	"the other", "other one", "another one",
}

// IsAmbiguous 查询是否在已知实体间歧义（泛称命中且无实体标记）
func (c *Clarifier) IsAmbiguous(queryText string) bool {
	if common.DetectEntity(queryText) != common.EntityGeneral {
		return false
	}
	return containsAny(strings.ToLower(queryText), genericCafeTerms)
}

// IsOtherOptionQuery 查询是否为 "另一个" 指代
func (c *Clarifier) IsOtherOptionQuery(queryText string) bool {
	return containsAny(strings.ToLower(queryText), otherOptionPatterns)
}

// Clarify 生成澄清问题并落一条带 ClarificationRecord 的轮次。
// 记录写失败只记日志，问题照常返回。
func (c *Clarifier) Clarify(ctx context.Context, queryText, sessionID string, language common.Language) common.UnifiedResponse {
	record := &common.ClarificationRecord{
		Type:            ambiguityTypeCafe,
		Options:         [2]common.Entity{common.EntityEngineer, common.EntitySaino},
		OriginSessionID: sessionID,
		CreatedAt:       time.Now(),
	}

	question := clarifyQuestion(record.Options, language)
	if c.store != nil && sessionID != "" {
		turn := &memory.Turn{
			ID:            uuid.NewString(),
			SessionID:     sessionID,
			Role:          memory.RoleAssistant,
			Content:       question,
			Emotion:       emotion.Surprised,
			Clarification: record,
			CreatedAt:     record.CreatedAt,
		}
		if err := c.store.AddTurn(ctx, turn); err != nil {
			c.logger.Warn("澄清记录写入失败", "session_id", sessionID, "error", err)
		}
	}
	metrics.ClarificationTotal.Inc()

	em, text := emotion.Ensure(question, emotion.Surprised)
	return common.UnifiedResponse{
		Text:    text,
		Emotion: em,
		Meta: common.ResponseMeta{
			AgentName:  agentName,
			Confidence: 0.9,
			Language:   language,
			Sources:    []string{"clarification"},
			ProcessingInfo: map[string]any{
				"clarification_type": record.Type,
			},
		},
	}
}

// ResolveOther 处理 "另一个" 指代：找最近的澄清记录，从其后轮次
// 推断已点名的选项，用内置知识直接回答未点名的那个。
// 记录缺失或两选项均未点名时重新澄清。
func (c *Clarifier) ResolveOther(ctx context.Context, sessionID string, language common.Language) common.UnifiedResponse {
	if c.store == nil || sessionID == "" {
		return c.Clarify(ctx, "", sessionID, language)
	}

	turns, err := c.store.RecentTurns(ctx, sessionID, memory.DefaultMaxTurns)
	if err != nil {
		c.logger.Warn("澄清状态读取失败", "session_id", sessionID, "error", err)
		return c.Clarify(ctx, "", sessionID, language)
	}

	// 新→旧找最近一条澄清记录
	recordIdx := -1
	var record *common.ClarificationRecord
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Clarification != nil {
			recordIdx = i
			record = turns[i].Clarification
			break
		}
	}
	if record == nil {
		return c.Clarify(ctx, "", sessionID, language)
	}

	// 澄清之后的轮次里找已点名的选项
	var named common.Entity
	for i := recordIdx + 1; i < len(turns); i++ {
		e := turns[i].Entity
		if e == "" || e == common.EntityGeneral {
			e = common.DetectEntity(turns[i].Content)
		}
		if e == record.Options[0] || e == record.Options[1] {
			named = e
		}
	}
	if named == "" {
		return c.Clarify(ctx, "", sessionID, language)
	}

	other := record.Options[0]
	if named == record.Options[0] {
		other = record.Options[1]
	}

	answer := cannedAnswer(other, language)
	em, text := emotion.Ensure(answer, emotion.Happy)
	return common.UnifiedResponse{
		Text:    text,
		Emotion: em,
		Meta: common.ResponseMeta{
			AgentName:  agentName,
			Confidence: 0.85,
			Language:   language,
			Sources:    []string{"canned:" + string(other)},
			ProcessingInfo: map[string]any{
				"resolved_entity": string(other),
				"named_entity":    string(named),
			},
		},
	}
}

// clarifyQuestion 两槽澄清问题模板
func clarifyQuestion(options [2]common.Entity, language common.Language) string {
	a := common.EntityDisplayName(options[0], language)
	b := common.EntityDisplayName(options[1], language)
	if language == common.LangJA {
		return fmt.Sprintf("[surprised] %sと%s、どちらのことでしょうか？", a, b)
	}
	return fmt.Sprintf("[surprised] Do you mean %s or %s?", a, b)
}

// cannedKnowledge "另一个" 直答用的固定知识胶囊
var cannedKnowledge = map[common.Entity]map[common.Language]string{
	common.EntityEngineer: {
		common.LangJA: "エンジニアカフェは1階にあり、9時から22時まで営業、入場無料です。電源とWi-Fiを備えた作業スペースが利用できます。",
		common.LangEN: "Engineer Cafe is on the first floor, open 9:00-22:00, free of charge, with power outlets and Wi-Fi available.",
	},
	common.EntitySaino: {
		common.LangJA: "サイノカフェは同じ建物の1階にあり、10時から18時まで営業しています。ドリンクと軽食を有料で提供しています。",
		common.LangEN: "Saino Cafe is on the first floor of the same building, open 10:00-18:00, serving drinks and light meals for a fee.",
	},
	common.EntityMeetingRoom: {
		common.LangJA: "ミーティングルームは地下1階にあり、利用には受付での予約が必要です。モニターとホワイトボードを備えています。",
		common.LangEN: "The meeting room is in the basement and requires a reservation at the front desk. It has a monitor and a whiteboard.",
	},
}

func cannedAnswer(entity common.Entity, language common.Language) string {
	if byLang, ok := cannedKnowledge[entity]; ok {
		if s, ok := byLang[language]; ok {
			return s
		}
		return byLang[common.LangEN]
	}
	if language == common.LangJA {
		return "すみません、その施設の情報が見つかりませんでした。"
	}
	return "Sorry, I could not find information about that facility."
}
