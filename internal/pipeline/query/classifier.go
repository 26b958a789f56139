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
	"encoding/json"
	"strings"
	"unicode"

	"cafe-navigator/internal/model/llm"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/log"
)

// confidenceThreshold 低于此置信度回落到 general-knowledge
const confidenceThreshold = 0.4

// Classifier 查询分类器。关键词前置匹配优先，LLM 兜底；
// 任何失败都退化为低置信度 general-knowledge，从不报错。
type Classifier struct {
	name   string
	client llm.Client
	logger *log.Logger
}

// NewClassifier 创建分类器；client 可为 nil（纯关键词模式）
func NewClassifier(client llm.Client, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Classifier{
		name:   "classifier",
		client: client,
		logger: logger,
	}
}

// Name 返回组件名称
func (c *Classifier) Name() string {
	return c.name
}

// categoryKeywords 确定性前置匹配表，顺序即优先级。
// 命中即短路，保证夹具查询的分类幂等。
var categoryKeywords = []struct {
	category    common.Category
	requestType common.RequestType
	keywords    []string
}{
	{common.CategoryHours, common.RequestHours, []string{"営業時間", "何時まで", "何時から", "開館", "閉館", "開いて", "やってる", "opening hours", "business hours", "what time", "open today"}},
	{common.CategoryPricing, common.RequestPrice, []string{"料金", "いくら", "価格", "値段", "無料", "有料", "price", "how much", "cost", "fee"}},
	{common.CategoryLocation, common.RequestLocation, []string{"どこにあ", "場所", "住所", "何階", "where is", "location", "address", "which floor"}},
	{common.CategoryLocation, common.RequestAccess, []string{"アクセス", "行き方", "最寄り", "how to get", "directions", "nearest station"}},
	{common.CategoryFacility, common.RequestBooking, []string{"予約", "申込", "申し込み", "booking", "reserve", "reservation"}},
	{common.CategoryFacility, common.RequestWifi, []string{"wifi", "wi-fi", "無線lan", "ネット使え"}},
	{common.CategoryFacility, common.RequestFacility, []string{"設備", "電源", "コンセント", "モニター", "ホワイトボード", "座席", "facilities", "equipment", "power outlet", "seats"}},
	{common.CategoryEvents, "", []string{"イベント", "催し", "ワークショップ", "event", "events", "workshop"}},
	{common.CategoryMemory, "", []string{"さっき", "なんて言った", "前に聞いた", "覚えて", "what did i", "you said", "earlier i asked", "remember"}},
}

// Classify 查询 → {category, requestType, language, confidence}
func (c *Classifier) Classify(ctx context.Context, queryText string, forcedLang common.Language) common.Classification {
	language := detectLanguage(queryText, forcedLang)

	lower := strings.ToLower(queryText)
	for _, entry := range categoryKeywords {
		if containsAny(lower, entry.keywords) {
			return common.Classification{
				Category:    entry.category,
				RequestType: entry.requestType,
				Language:    language,
				Confidence:  0.9,
			}
		}
	}

	if c.client == nil {
		return defaultClassification(language)
	}
	return c.classifyWithLLM(ctx, queryText, language)
}

// llmClassification LLM 分类输出的严格解析目标
type llmClassification struct {
	Category    string  `json:"category"`
	RequestType string  `json:"request_type"`
	Confidence  float64 `json:"confidence"`
}

const classifyPrompt = `あなたは施設案内の質問分類器です。質問を JSON で分類してください。
category: business-hours | pricing | location | facility-info | events | memory-recall | general-knowledge
request_type: hours | price | location | access | booking | facility | wifi | ""(なし)
confidence: 0.0-1.0
出力は JSON オブジェクトのみ。例: {"category":"pricing","request_type":"price","confidence":0.85}`

func (c *Classifier) classifyWithLLM(ctx context.Context, queryText string, language common.Language) common.Classification {
	messages := []llm.Message{
		{Role: "system", Content: classifyPrompt},
		{Role: "user", Content: queryText},
	}
	text, err := c.client.ChatWithContext(ctx, messages, llm.GenerateOptions{
		Temperature: 0.0,
		MaxTokens:   128,
	})
	if err != nil {
		c.logger.Warn("分类调用失败，回落默认分类", "error", err)
		return defaultClassification(language)
	}

	var parsed llmClassification
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		c.logger.Warn("分类输出解析失败", "raw", text, "error", err)
		return defaultClassification(language)
	}

	category := common.Category(parsed.Category)
	if !validCategory(category) || parsed.Confidence < confidenceThreshold {
		return defaultClassification(language)
	}
	requestType := common.RequestType(parsed.RequestType)
	if !validRequestType(requestType) {
		requestType = ""
	}
	return common.Classification{
		Category:    category,
		RequestType: requestType,
		Language:    language,
		Confidence:  parsed.Confidence,
	}
}

func defaultClassification(language common.Language) common.Classification {
	return common.Classification{
		Category:   common.CategoryGeneral,
		Language:   language,
		Confidence: 0.3,
	}
}

// detectLanguage 语言判定：forced 优先，其次假名/汉字扫描，默认 en
func detectLanguage(text string, forced common.Language) common.Language {
	if forced == common.LangJA || forced == common.LangEN {
		return forced
	}
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return common.LangJA
		}
	}
	return common.LangEN
}

// extractJSON 从可能带包裹文本的输出里截取首个 JSON 对象
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func validCategory(c common.Category) bool {
	switch c {
	case common.CategoryHours, common.CategoryPricing, common.CategoryLocation,
		common.CategoryFacility, common.CategoryEvents, common.CategoryMemory,
		common.CategoryGeneral:
		return true
	}
	return false
}

func validRequestType(r common.RequestType) bool {
	switch r {
	case common.RequestHours, common.RequestPrice, common.RequestLocation,
		common.RequestAccess, common.RequestBooking, common.RequestFacility,
		common.RequestWifi:
		return true
	}
	return false
}
