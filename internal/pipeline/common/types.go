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

package common

import (
	"strings"
	"time"

	"cafe-navigator/internal/emotion"
)

// Language 应答语言
type Language string

const (
	LangJA Language = "ja"
	LangEN Language = "en"
)

// Category 查询归属大类（封闭集合）
type Category string

const (
	CategoryHours    Category = "business-hours"
	CategoryPricing  Category = "pricing"
	CategoryLocation Category = "location"
	CategoryFacility Category = "facility-info"
	CategoryEvents   Category = "events"
	CategoryMemory   Category = "memory-recall"
	CategoryGeneral  Category = "general-knowledge"
)

// RequestType 大类内的子话题
type RequestType string

const (
	RequestHours    RequestType = "hours"
	RequestPrice    RequestType = "price"
	RequestLocation RequestType = "location"
	RequestAccess   RequestType = "access"
	RequestBooking  RequestType = "booking"
	RequestFacility RequestType = "facility"
	RequestWifi     RequestType = "wifi"
)

// Entity 系统认识的固定实体集合
type Entity string

const (
	EntityEngineer    Entity = "engineer"
	EntitySaino       Entity = "saino"
	EntityMeetingRoom Entity = "meeting-room"
	EntityGeneral     Entity = "general"
)

// entityMarkers 实体的词面标记；content/title/category 命中任一即判为该实体。
// engineer 的裸 "カフェ"/"cafe" 不在表内：两家咖啡共享该词，由消歧处理。
var entityMarkers = map[Entity][]string{
	EntitySaino: {
		"サイノカフェ", "サイノ", "saino",
	},
	EntityEngineer: {
		"エンジニアカフェ", "エンジニア", "engineer cafe", "engineercafe", "engineer",
	},
	EntityMeetingRoom: {
		"ミーティングルーム", "会議室", "meeting room", "meeting-room", "mtgルーム",
	},
}

// entityDetectOrder 检测顺序：saino 的标记是 engineer 标记的非前缀子集，
// 但 "サイノカフェのエンジニア向けイベント" 类文本需先判 saino
var entityDetectOrder = []Entity{EntitySaino, EntityMeetingRoom, EntityEngineer}

// DetectEntity 扫描文本判定实体；未命中返回 EntityGeneral
func DetectEntity(texts ...string) Entity {
	joined := strings.ToLower(strings.Join(texts, " "))
	for _, e := range entityDetectOrder {
		for _, marker := range entityMarkers[e] {
			if strings.Contains(joined, strings.ToLower(marker)) {
				return e
			}
		}
	}
	return EntityGeneral
}

// EntityDisplayName 实体的完整名称（查询改写与澄清问题使用）
func EntityDisplayName(e Entity, lang Language) string {
	names := map[Entity]map[Language]string{
		EntityEngineer:    {LangJA: "エンジニアカフェ", LangEN: "Engineer Cafe"},
		EntitySaino:       {LangJA: "サイノカフェ", LangEN: "Saino Cafe"},
		EntityMeetingRoom: {LangJA: "ミーティングルーム", LangEN: "the meeting room"},
	}
	if byLang, ok := names[e]; ok {
		if n, ok := byLang[lang]; ok {
			return n
		}
		return byLang[LangEN]
	}
	return string(e)
}

// KnowledgeFragment 检索适配器产出的一条知识片段（core 只读）
type KnowledgeFragment struct {
	Content    string   `json:"content"`
	Similarity float64  `json:"similarity"` // ∈[0,1]
	Category   string   `json:"category"`
	Language   Language `json:"language"`
	Title      string   `json:"title,omitempty"`
}

// RelevanceFactors 单片段的四个重排信号，均 ∈[0,1]
type RelevanceFactors struct {
	EntityMatch      float64 `json:"entity_match"`
	ContextMatch     float64 `json:"context_match"`
	PracticalValue   float64 `json:"practical_value"`
	SpecificityScore float64 `json:"specificity_score"`
}

// ScoredFragment 重排后的片段；排序（PriorityScore 降序、相似度决胜）
// 是 scorer 对外的唯一可观察契约
type ScoredFragment struct {
	KnowledgeFragment
	Entity        Entity           `json:"entity"`
	Factors       RelevanceFactors `json:"relevance_factors"`
	PriorityScore float64          `json:"priority_score"`
}

// Classification 路由分类结果
type Classification struct {
	Category    Category    `json:"category"`
	RequestType RequestType `json:"request_type,omitempty"` // 空表示无子话题
	Language    Language    `json:"language"`
	Confidence  float64     `json:"confidence"`
}

// ResponseMeta UnifiedResponse 的元数据
type ResponseMeta struct {
	AgentName      string         `json:"agent_name"`
	Confidence     float64        `json:"confidence"` // ∈[0,1]
	Language       Language       `json:"language"`
	Category       Category       `json:"category,omitempty"`
	RequestType    RequestType    `json:"request_type,omitempty"`
	Sources        []string       `json:"sources"`
	ProcessingInfo map[string]any `json:"processing_info,omitempty"`
}

// UnifiedResponse 所有下游消费者（语音、avatar、日志）依赖的唯一契约。
// 不变量：Text 以恰好一个词汇表内情绪标记开头。
type UnifiedResponse struct {
	Text    string          `json:"text"`
	Emotion emotion.Emotion `json:"emotion"`
	Meta    ResponseMeta    `json:"metadata"`
}

// ClarificationRecord 待澄清选择；过期由记忆存储的 TTL 承担，无显式取消态
type ClarificationRecord struct {
	Type            string    `json:"type"` // 歧义类型，如 "cafe"
	Options         [2]Entity `json:"options"`
	OriginSessionID string    `json:"origin_session_id"`
	CreatedAt       time.Time `json:"created_at"`
}
