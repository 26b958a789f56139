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
	"errors"
	"testing"

	"cafe-navigator/internal/model/llm"
	"cafe-navigator/internal/pipeline/common"
)

// fakeLLM 固定应答的生成客户端，保留最后收到的消息
type fakeLLM struct {
	reply       string
	err         error
	calls       int
	gotMessages []llm.Message
}

func (f *fakeLLM) ChatWithContext(_ context.Context, messages []llm.Message, _ llm.GenerateOptions) (string, error) {
	f.calls++
	f.gotMessages = messages
	return f.reply, f.err
}

func (f *fakeLLM) Model() string    { return "fake-model" }
func (f *fakeLLM) Provider() string { return "fake" }

func TestClassifyKeywordPrePass(t *testing.T) {
	c := NewClassifier(nil, nil)
	cases := []struct {
		query       string
		category    common.Category
		requestType common.RequestType
		language    common.Language
	}{
		{"サイノカフェの営業時間は？", common.CategoryHours, common.RequestHours, common.LangJA},
		{"コーヒーはいくらですか", common.CategoryPricing, common.RequestPrice, common.LangJA},
		{"ミーティングルームはどこにありますか", common.CategoryLocation, common.RequestLocation, common.LangJA},
		{"会議室の予約はできますか", common.CategoryFacility, common.RequestBooking, common.LangJA},
		{"Wi-Fiは使えますか", common.CategoryFacility, common.RequestWifi, common.LangJA},
		{"What are the opening hours?", common.CategoryHours, common.RequestHours, common.LangEN},
		{"さっき何を聞きましたか", common.CategoryMemory, common.RequestType(""), common.LangJA},
	}
	for _, tc := range cases {
		got := c.Classify(context.Background(), tc.query, "")
		if got.Category != tc.category {
			t.Errorf("Classify(%q).Category = %s, want %s", tc.query, got.Category, tc.category)
		}
		if got.RequestType != tc.requestType {
			t.Errorf("Classify(%q).RequestType = %s, want %s", tc.query, got.RequestType, tc.requestType)
		}
		if got.Language != tc.language {
			t.Errorf("Classify(%q).Language = %s, want %s", tc.query, got.Language, tc.language)
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := NewClassifier(nil, nil)
	first := c.Classify(context.Background(), "サイノカフェの営業時間は？", "")
	second := c.Classify(context.Background(), "サイノカフェの営業時間は？", "")
	if first != second {
		t.Errorf("classification not idempotent: %+v vs %+v", first, second)
	}
}

func TestClassifyLLMFallbackOnError(t *testing.T) {
	c := NewClassifier(&fakeLLM{err: errors.New("boom")}, nil)
	got := c.Classify(context.Background(), "この建物の歴史を教えて", "")
	if got.Category != common.CategoryGeneral {
		t.Errorf("failed LLM should default to general-knowledge, got %s", got.Category)
	}
	if got.Confidence > 0.4 {
		t.Errorf("default classification should be low confidence, got %f", got.Confidence)
	}
}

func TestClassifyLLMParsing(t *testing.T) {
	c := NewClassifier(&fakeLLM{reply: `ラベル: {"category":"events","request_type":"","confidence":0.8}`}, nil)
	got := c.Classify(context.Background(), "来月は何か面白いことがありますか", "")
	if got.Category != common.CategoryEvents {
		t.Errorf("expected events from LLM output, got %s", got.Category)
	}
	if got.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", got.Confidence)
	}
}

func TestClassifyLLMLowConfidenceDefaults(t *testing.T) {
	c := NewClassifier(&fakeLLM{reply: `{"category":"events","request_type":"","confidence":0.2}`}, nil)
	got := c.Classify(context.Background(), "うーん、なんだろう", "")
	if got.Category != common.CategoryGeneral {
		t.Errorf("below-threshold confidence should default, got %s", got.Category)
	}
}

func TestClassifyInvalidCategoryDefaults(t *testing.T) {
	c := NewClassifier(&fakeLLM{reply: `{"category":"nonsense","confidence":0.9}`}, nil)
	got := c.Classify(context.Background(), "何か面白いことを教えて", "")
	if got.Category != common.CategoryGeneral {
		t.Errorf("unknown category should default, got %s", got.Category)
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text   string
		forced common.Language
		want   common.Language
	}{
		{"こんにちは", "", common.LangJA},
		{"hello there", "", common.LangEN},
		{"hello", common.LangJA, common.LangJA},
		{"カフェ cafe mixed", "", common.LangJA},
		{"", "", common.LangEN},
	}
	for _, tc := range cases {
		if got := detectLanguage(tc.text, tc.forced); got != tc.want {
			t.Errorf("detectLanguage(%q, %q) = %s, want %s", tc.text, tc.forced, got, tc.want)
		}
	}
}
