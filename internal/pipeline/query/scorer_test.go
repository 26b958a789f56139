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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/config"
)

func testFragments() []common.KnowledgeFragment {
	return []common.KnowledgeFragment{
		{Content: "サイノカフェは10時から18時まで営業しています。", Similarity: 0.80, Category: "business-hours", Language: common.LangJA},
		{Content: "エンジニアカフェは9時から22時まで営業しています。", Similarity: 0.85, Category: "business-hours", Language: common.LangJA},
		{Content: "館内でイベントを開催しています。", Similarity: 0.60, Category: "events", Language: common.LangJA},
	}
}

func TestScorerOrderingNonIncreasing(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	scored := s.Score(testFragments(), "サイノカフェの営業時間は？", common.CategoryHours, common.LangJA)
	require.Len(t, scored, 3)

	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].PriorityScore, scored[i].PriorityScore,
			"priority scores must be non-increasing")
	}
}

func TestScorerDeterminism(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	first := s.Score(testFragments(), "サイノカフェの営業時間は？", common.CategoryHours, common.LangJA)
	second := s.Score(testFragments(), "サイノカフェの営業時間は？", common.CategoryHours, common.LangJA)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].PriorityScore, second[i].PriorityScore)
	}
}

func TestScorerQueryEntityOutranksOther(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	// 即使エンジニアカフェ片段相似度更高，问サイノ时サイノ排前
	scored := s.Score(testFragments(), "サイノカフェの営業時間は？", common.CategoryHours, common.LangJA)

	require.NotEmpty(t, scored)
	assert.Equal(t, common.EntitySaino, scored[0].Entity)
	assert.Equal(t, 1.0, scored[0].Factors.EntityMatch)
}

func TestScorerEntityDetectionPerFragment(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	scored := s.Score(testFragments(), "営業時間を教えて", common.CategoryHours, common.LangJA)

	byContent := map[string]common.Entity{}
	for _, sf := range scored {
		byContent[sf.Content] = sf.Entity
	}
	assert.Equal(t, common.EntitySaino, byContent["サイノカフェは10時から18時まで営業しています。"])
	assert.Equal(t, common.EntityEngineer, byContent["エンジニアカフェは9時から22時まで営業しています。"])
	assert.Equal(t, common.EntityGeneral, byContent["館内でイベントを開催しています。"])
}

func TestScorerPricingPolicy(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	fragments := []common.KnowledgeFragment{
		{Content: "入場無料でどなたでもご利用いただけます。", Similarity: 0.5, Language: common.LangJA},
		{Content: "コピーサービスは1枚10円の有料です。", Similarity: 0.5, Language: common.LangJA},
	}
	scored := s.Score(fragments, "料金について", common.CategoryPricing, common.LangJA)
	require.Len(t, scored, 2)

	// 免费服务排在收费子服务之前
	assert.Contains(t, scored[0].Content, "無料")
	assert.Equal(t, 1.0, scored[0].Factors.EntityMatch)
	assert.Equal(t, 0.2, scored[1].Factors.EntityMatch)
}

func TestSpecificityScore(t *testing.T) {
	cases := []struct {
		content string
		want    float64
	}{
		{"特に情報のない文です", 0.5},
		{"9時から22時まで営業", 0.7},
		{"コーヒーは400円です", 0.7},
		{"営業は9:00から、コーヒーは400円", 0.9},
		{"定員10名、地下1階、10:00開始、500円", 1.0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, specificityScore(tc.content), 1e-9, "content=%s", tc.content)
	}
}

func TestPracticalValueScore(t *testing.T) {
	assert.InDelta(t, 0.5, practicalValueScore("ただの説明文"), 1e-9)
	assert.InDelta(t, 0.6, practicalValueScore("事前の申込をおすすめします"), 1e-9)
	// 必要 + 予約 + スタッフ + 方法 四组全部命中
	assert.InDelta(t, 0.9, practicalValueScore("予約が必要です。方法はスタッフにお尋ねください"), 1e-9)
}

func TestScorerEmptyInput(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	assert.Nil(t, s.Score(nil, "query", common.CategoryGeneral, common.LangJA))
}

func TestScorerCategoryWeightOverride(t *testing.T) {
	cfg := config.ScoringConfig{
		Categories: map[string]config.ScoreWeights{
			string(common.CategoryEvents): {Similarity: 1.0},
		},
	}
	s := NewScorer(cfg)
	fragments := []common.KnowledgeFragment{
		{Content: "a", Similarity: 0.4},
		{Content: "b", Similarity: 0.9},
	}
	scored := s.Score(fragments, "query", common.CategoryEvents, common.LangEN)
	require.Len(t, scored, 2)
	assert.InDelta(t, 0.9, scored[0].PriorityScore, 1e-9)
	assert.InDelta(t, 0.4, scored[1].PriorityScore, 1e-9)
}
