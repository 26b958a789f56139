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
	"regexp"
	"sort"
	"strings"

	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/config"
)

// Scorer 检索结果重排器：四个信号加权合成优先级分，
// 排序对相同输入完全确定（priorityScore 降序 → 原始相似度 → 原始下标）。
type Scorer struct {
	name       string
	defaults   config.ScoreWeights
	byCategory map[common.Category]config.ScoreWeights
}

// NewScorer 创建重排器；cfg 为零值时使用内置权重
func NewScorer(cfg config.ScoringConfig) *Scorer {
	defaults := cfg.Weights
	if defaults == (config.ScoreWeights{}) {
		defaults = config.ScoreWeights{
			Similarity:  0.3,
			Entity:      0.3,
			Context:     0.2,
			Practical:   0.1,
			Specificity: 0.1,
		}
	}

	byCategory := map[common.Category]config.ScoreWeights{
		// 价格与设施问题里实体归属比相似度更关键
		common.CategoryPricing:  {Similarity: 0.2, Entity: 0.35, Context: 0.25, Practical: 0.1, Specificity: 0.1},
		common.CategoryFacility: {Similarity: 0.2, Entity: 0.35, Context: 0.25, Practical: 0.1, Specificity: 0.1},
		// 营业时间问题里具体时刻最有价值
		common.CategoryHours: {Similarity: 0.25, Entity: 0.25, Context: 0.2, Practical: 0.1, Specificity: 0.2},
	}
	for k, v := range cfg.Categories {
		byCategory[common.Category(k)] = v
	}

	return &Scorer{
		name:       "scorer",
		defaults:   defaults,
		byCategory: byCategory,
	}
}

// Name 返回组件名称
func (s *Scorer) Name() string {
	return s.name
}

// Score 对片段列表重排。输入只读，返回新切片。
func (s *Scorer) Score(fragments []common.KnowledgeFragment, query string, category common.Category, language common.Language) []common.ScoredFragment {
	if len(fragments) == 0 {
		return nil
	}

	weights := s.weightsFor(category)
	keywords := queryKeywords(query)
	queryEntity := common.DetectEntity(query)

	scored := make([]common.ScoredFragment, 0, len(fragments))
	for _, frag := range fragments {
		entity := common.DetectEntity(frag.Content, frag.Title, frag.Category)
		factors := common.RelevanceFactors{
			EntityMatch:      entityMatchScore(frag, entity, queryEntity, category),
			ContextMatch:     contextMatchScore(frag.Content, keywords, category),
			PracticalValue:   practicalValueScore(frag.Content),
			SpecificityScore: specificityScore(frag.Content),
		}
		priority := weights.Similarity*frag.Similarity +
			weights.Entity*factors.EntityMatch +
			weights.Context*factors.ContextMatch +
			weights.Practical*factors.PracticalValue +
			weights.Specificity*factors.SpecificityScore

		scored = append(scored, common.ScoredFragment{
			KnowledgeFragment: frag,
			Entity:            entity,
			Factors:           factors,
			PriorityScore:     priority,
		})
	}

	// 稳定排序，分数与相似度都相同时保持原始下标顺序
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].PriorityScore != scored[j].PriorityScore {
			return scored[i].PriorityScore > scored[j].PriorityScore
		}
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored
}

func (s *Scorer) weightsFor(category common.Category) config.ScoreWeights {
	if w, ok := s.byCategory[category]; ok && w != (config.ScoreWeights{}) {
		return w
	}
	return s.defaults
}

// entityMatchScore 片段实体与查询实体的归属匹配，按 category 调整。
// 查询指明实体时：同实体满分、异实体 0.2、无归属中性分；
// 查询未指明实体时走价格类的免费/付费策略。
func entityMatchScore(frag common.KnowledgeFragment, fragEntity, queryEntity common.Entity, category common.Category) float64 {
	content := strings.ToLower(frag.Content)

	if queryEntity != common.EntityGeneral {
		switch fragEntity {
		case queryEntity:
			return 1.0
		case common.EntityGeneral:
			return 0.5
		default:
			return 0.2
		}
	}

	switch fragEntity {
	case common.EntityEngineer, common.EntitySaino, common.EntityMeetingRoom:
		if category == common.CategoryPricing && containsAny(content, paidServiceMarkers) && !containsAny(content, freeMarkers) {
			return 0.6
		}
		return 1.0
	default:
		if category == common.CategoryPricing {
			if containsAny(content, freeMarkers) {
				return 1.0
			}
			if containsAny(content, paidServiceMarkers) {
				return 0.2
			}
		}
		return 0.5
	}
}

var freeMarkers = []string{"無料", "むりょう", "free of charge", "free admission", "入場無料", "利用無料"}

var paidServiceMarkers = []string{"有料", "円", "yen", "¥", "paid", "fee", "料金"}

// highValueTopicKeywords 高价值子话题词。命中时 contextMatch 取
// 关键词占比与 0.8 的较大值。
var highValueTopicKeywords = []string{
	"営業時間", "開館", "閉館", "opening hours", "business hours",
	"料金", "価格", "price", "pricing",
	"予約", "booking", "reservation",
	"wifi", "wi-fi",
}

// contextMatchScore 查询关键词在片段中的占比
func contextMatchScore(content string, keywords []string, category common.Category) float64 {
	if len(keywords) == 0 {
		return 0.5
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	score := float64(matched) / float64(len(keywords))

	if containsAny(lower, highValueTopicKeywords) && matched > 0 && score < 0.8 {
		score = 0.8
	}
	return score
}

// actionablePatterns 可执行信息的词面模式，每命中一类 +0.1
var actionablePatterns = [][]string{
	{"方法", "やり方", "how to", "手順"},
	{"スタッフ", "受付", "ask staff", "staff", "お声がけ"},
	{"必要", "不要", "required", "not required", "申込"},
	{"予約", "booking", "reservation"},
}

// practicalValueScore 基线 0.5，按可执行模式加分，封顶 1.0
func practicalValueScore(content string) float64 {
	lower := strings.ToLower(content)
	score := 0.5
	for _, group := range actionablePatterns {
		if containsAny(lower, group) {
			score += 0.1
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

var (
	timeOfDayPattern = regexp.MustCompile(`(\d{1,2}[:：]\d{2})|(\d{1,2}時(半|\d{1,2}分)?)|(\d{1,2}\s?(am|pm|AM|PM))`)
	currencyPattern  = regexp.MustCompile(`(\d[\d,]*\s?円)|([¥￥$]\s?\d)|(\d+\s?yen)`)
	headcountPattern = regexp.MustCompile(`(\d+\s?名)|(\d+\s?人)|(\d+\s?(people|persons|seats))`)
	floorPattern     = regexp.MustCompile(`(\d+\s?階)|([Bb]?\d+?[Ff]\b)|(floor\s?\d)|(地下)`)
)

// specificityScore 基线 0.5；时刻 +0.2、金额 +0.2、人数 +0.1、楼层 +0.1，封顶 1.0
func specificityScore(content string) float64 {
	score := 0.5
	if timeOfDayPattern.MatchString(content) {
		score += 0.2
	}
	if currencyPattern.MatchString(content) {
		score += 0.2
	}
	if headcountPattern.MatchString(content) {
		score += 0.1
	}
	if floorPattern.MatchString(content) {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// queryKeywords 切分查询为小写关键词，丢弃单字符 token
func queryKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		switch r {
		case ' ', '　', '\t', '\n', '、', '。', '？', '！', ',', '.', '?', '!', '・':
			return true
		}
		return false
	})
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

func containsAny(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
