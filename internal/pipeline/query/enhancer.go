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
	"fmt"
	"strings"

	"cafe-navigator/internal/memory"
	"cafe-navigator/internal/pipeline/common"
)

// shortContextThreshold 短上下文判定的字符阈值（rune 计）
const shortContextThreshold = 10

// Enhancer 上下文查询改写器：短/省略查询借记忆补全实体与话题。
// 无可继承信息时原样放行，从不虚构实体。
type Enhancer struct {
	name string
}

// NewEnhancer 创建改写器
func NewEnhancer() *Enhancer {
	return &Enhancer{name: "enhancer"}
}

// Name 返回组件名称
func (e *Enhancer) Name() string {
	return e.name
}

// ellipticalPatterns 省略查询的词面模式：代词指代、裸星期、裸实体片段
var ellipticalPatterns = []string{
	"それ", "そこ", "あれ", "どう", "何時", "いつ",
	"月曜", "火曜", "水曜", "木曜", "金曜", "土曜", "日曜", "平日", "週末", "祝日",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "weekday", "weekend",
	"there", "that one", "what about", "how about",
	"カフェは", "cafe?",
}

// dayOfWeekPatterns 裸星期片段；此类查询隐含营业时间话题
var dayOfWeekPatterns = []string{
	"月曜", "火曜", "水曜", "木曜", "金曜", "土曜", "日曜", "平日", "週末", "祝日",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "weekday", "weekend",
}

// IsShortContext 查询是否需要借上下文补全
func (e *Enhancer) IsShortContext(query string) bool {
	if len([]rune(strings.TrimSpace(query))) < shortContextThreshold {
		return true
	}
	lower := strings.ToLower(query)
	for _, p := range ellipticalPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// topicTerms 按 requestType×language 的话题补全词
var topicTerms = map[common.RequestType]map[common.Language]string{
	common.RequestHours:    {common.LangJA: "営業時間", common.LangEN: "operating hours"},
	common.RequestPrice:    {common.LangJA: "料金", common.LangEN: "pricing"},
	common.RequestLocation: {common.LangJA: "場所", common.LangEN: "location"},
	common.RequestAccess:   {common.LangJA: "アクセス", common.LangEN: "access"},
	common.RequestBooking:  {common.LangJA: "予約", common.LangEN: "booking"},
	common.RequestFacility: {common.LangJA: "設備", common.LangEN: "facilities"},
	common.RequestWifi:     {common.LangJA: "Wi-Fi", common.LangEN: "wifi"},
}

// Enhance 改写短上下文查询。返回改写结果与是否改写。
// 改写是确定性的：固定模板 per requestType×language。
func (e *Enhancer) Enhance(query string, mc *memory.MemoryContext, language common.Language) (string, bool) {
	if mc == nil || !mc.HasInheritance() {
		return query, false
	}
	if !e.IsShortContext(query) {
		return query, false
	}
	// 查询里已有明确实体时不改写
	if common.DetectEntity(query) != common.EntityGeneral {
		return query, false
	}

	entityName := ""
	if mc.InheritedEntity != "" && mc.InheritedEntity != common.EntityGeneral {
		entityName = common.EntityDisplayName(mc.InheritedEntity, language)
	}
	topic := ""
	if mc.InheritedRequestType != "" {
		if byLang, ok := topicTerms[mc.InheritedRequestType]; ok {
			if t, ok := byLang[language]; ok {
				topic = t
			} else {
				topic = byLang[common.LangEN]
			}
		}
	}
	// 裸星期片段隐含营业时间话题
	if topic == "" && containsAny(strings.ToLower(query), dayOfWeekPatterns) {
		topic = topicTerms[common.RequestHours][language]
		if topic == "" {
			topic = topicTerms[common.RequestHours][common.LangEN]
		}
	}
	if entityName == "" && topic == "" {
		return query, false
	}

	trimmed := strings.TrimSpace(query)
	var enhanced string
	if language == common.LangJA {
		switch {
		case entityName != "" && topic != "":
			enhanced = fmt.Sprintf("%sの%s %s", entityName, topic, trimmed)
		case entityName != "":
			enhanced = fmt.Sprintf("%sについて %s", entityName, trimmed)
		default:
			enhanced = fmt.Sprintf("%s %s", topic, trimmed)
		}
	} else {
		switch {
		case entityName != "" && topic != "":
			enhanced = fmt.Sprintf("%s %s of %s", trimmed, topic, entityName)
		case entityName != "":
			enhanced = fmt.Sprintf("%s about %s", trimmed, entityName)
		default:
			enhanced = fmt.Sprintf("%s %s", trimmed, topic)
		}
	}
	return enhanced, true
}
