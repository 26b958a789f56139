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
	"strings"

	"cafe-navigator/internal/pipeline/common"
)

// TopicFilter 话题内容过滤器：把拼接好的检索文本收窄到一个子话题。
// 非空输入永不返回空串。
type TopicFilter struct {
	name string
}

// FilterResult 过滤结果与可观测长度
type FilterResult struct {
	Text           string
	OriginalLength int
	FilteredLength int
}

// NewTopicFilter 创建过滤器
func NewTopicFilter() *TopicFilter {
	return &TopicFilter{name: "topic_filter"}
}

// Name 返回组件名称
func (f *TopicFilter) Name() string {
	return f.name
}

// topicKeywords 按 requestType×language 的 include/exclude 词表
type topicKeywords struct {
	include []string
	exclude []string
}

var topicTables = map[common.RequestType]map[common.Language]topicKeywords{
	common.RequestHours: {
		common.LangJA: {
			include: []string{"営業時間", "営業", "開館", "閉館", "開店", "閉店", "休館", "定休", "時から", "時まで", "まで営業"},
			exclude: []string{"料金", "価格", "円", "予約方法", "アクセス"},
		},
		common.LangEN: {
			include: []string{"hours", "open", "close", "opening", "closing", "closed on", "holiday"},
			exclude: []string{"price", "fee", "yen", "booking", "access"},
		},
	},
	common.RequestPrice: {
		common.LangJA: {
			include: []string{"料金", "価格", "円", "無料", "有料", "費用", "値段"},
			exclude: []string{"営業時間", "開館", "閉館", "アクセス", "行き方"},
		},
		common.LangEN: {
			include: []string{"price", "fee", "charge", "free", "yen", "cost", "¥"},
			exclude: []string{"hours", "open from", "access", "directions"},
		},
	},
	common.RequestLocation: {
		common.LangJA: {
			include: []string{"場所", "所在地", "住所", "階", "地下", "フロア", "にあります"},
			exclude: []string{"料金", "営業時間", "予約"},
		},
		common.LangEN: {
			include: []string{"located", "location", "address", "floor", "basement"},
			exclude: []string{"price", "hours", "booking"},
		},
	},
	common.RequestAccess: {
		common.LangJA: {
			include: []string{"アクセス", "行き方", "最寄り", "駅", "バス", "徒歩", "駐車"},
			exclude: []string{"料金", "営業時間", "Wi-Fi"},
		},
		common.LangEN: {
			include: []string{"access", "directions", "station", "bus", "walk", "parking"},
			exclude: []string{"price", "hours", "wifi"},
		},
	},
	common.RequestBooking: {
		common.LangJA: {
			include: []string{"予約", "申込", "申し込み", "受付", "利用登録"},
			exclude: []string{"アクセス", "行き方", "駅"},
		},
		common.LangEN: {
			include: []string{"booking", "reservation", "reserve", "apply", "registration"},
			exclude: []string{"access", "directions", "station"},
		},
	},
	common.RequestFacility: {
		common.LangJA: {
			include: []string{"設備", "施設", "電源", "コンセント", "モニター", "ホワイトボード", "座席", "席"},
			exclude: []string{"アクセス", "行き方"},
		},
		common.LangEN: {
			include: []string{"facility", "facilities", "equipment", "power outlet", "monitor", "whiteboard", "seats"},
			exclude: []string{"access", "directions"},
		},
	},
	common.RequestWifi: {
		common.LangJA: {
			include: []string{"wi-fi", "wifi", "無線", "ネットワーク", "接続", "パスワード", "ssid"},
			exclude: []string{"料金", "営業時間"},
		},
		common.LangEN: {
			include: []string{"wi-fi", "wifi", "wireless", "network", "password", "ssid"},
			exclude: []string{"price", "hours"},
		},
	},
}

// Filter 按子话题收窄文本。requestType 无词表时原样返回。
func (f *TopicFilter) Filter(block string, requestType common.RequestType, language common.Language) FilterResult {
	result := FilterResult{Text: block, OriginalLength: len([]rune(block))}
	if block == "" {
		return result
	}

	byLang, ok := topicTables[requestType]
	if !ok {
		result.FilteredLength = result.OriginalLength
		return result
	}
	table, ok := byLang[language]
	if !ok {
		table = byLang[common.LangEN]
	}

	sections := splitSentences(block, language)

	kept := make([]string, 0, len(sections))
	for _, sec := range sections {
		lower := strings.ToLower(sec)
		if containsAny(lower, table.exclude) {
			continue
		}
		if containsAny(lower, table.include) {
			kept = append(kept, sec)
			continue
		}
		// 仅 hours：裸时刻模式也算命中
		if requestType == common.RequestHours && timeOfDayPattern.MatchString(sec) {
			kept = append(kept, sec)
		}
	}

	if len(kept) == 0 {
		kept = fallbackSections(sections, table.include, block)
	}

	result.Text = joinSentences(kept, language)
	result.FilteredLength = len([]rune(result.Text))
	return result
}

// fallbackSections 空结果回退链：最佳 include 命中段 → 首段 → 整块
func fallbackSections(sections []string, include []string, block string) []string {
	best := ""
	bestHits := 0
	for _, sec := range sections {
		lower := strings.ToLower(sec)
		hits := 0
		for _, kw := range include {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = sec
		}
	}
	if best != "" {
		return []string{best}
	}
	if len(sections) > 0 {
		return []string{sections[0]}
	}
	return []string{block}
}

// splitSentences 句切分。ja 按 。！？ 与换行，en 按 .!? 与换行。
func splitSentences(block string, language common.Language) []string {
	var terminators map[rune]bool
	if language == common.LangJA {
		terminators = map[rune]bool{'。': true, '！': true, '？': true, '\n': true}
	} else {
		terminators = map[rune]bool{'.': true, '!': true, '?': true, '\n': true}
	}

	var sections []string
	var sb strings.Builder
	for _, r := range block {
		if terminators[r] {
			if r != '\n' {
				sb.WriteRune(r)
			}
			if s := strings.TrimSpace(sb.String()); s != "" {
				sections = append(sections, s)
			}
			sb.Reset()
			continue
		}
		sb.WriteRune(r)
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		sections = append(sections, s)
	}
	return sections
}

func joinSentences(sections []string, language common.Language) string {
	if language == common.LangJA {
		return strings.Join(sections, "")
	}
	return strings.Join(sections, " ")
}
