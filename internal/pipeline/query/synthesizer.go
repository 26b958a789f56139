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

	"cafe-navigator/internal/emotion"
	"cafe-navigator/internal/model/llm"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/log"
	"cafe-navigator/pkg/metrics"
)

// agentName UnifiedResponse 元数据里的固定应答方标识
const agentName = "cafe-navigator"

// Synthesizer 响应合成器：拼 prompt、调生成、防御性后处理。
// 生成失败退化为固定道歉响应，从不把错误抛给调用方。
type Synthesizer struct {
	name   string
	client llm.Client
	logger *log.Logger
}

// NewSynthesizer 创建合成器
func NewSynthesizer(client llm.Client, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Synthesizer{
		name:   "synthesizer",
		client: client,
		logger: logger,
	}
}

// Name 返回组件名称
func (s *Synthesizer) Name() string {
	return s.name
}

// SynthesisInput 合成输入
type SynthesisInput struct {
	Query          string
	FilteredText   string
	ContextString  string
	Classification common.Classification
	Sources        []string
}

// Synthesize 产出 UnifiedResponse。不变量：Text 以恰好一个情绪标记开头。
func (s *Synthesizer) Synthesize(ctx context.Context, input SynthesisInput) common.UnifiedResponse {
	if s.client == nil {
		return s.Fallback(input.Classification.Language, "no_client")
	}

	messages := s.buildMessages(input)
	text, err := s.client.ChatWithContext(ctx, messages, llm.GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		s.logger.Warn("生成失败，返回降级响应",
			"error", common.NewPipelineError("synthesize", "生成调用失败", fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)))
		return s.Fallback(input.Classification.Language, "generation_error")
	}

	em, normalized := emotion.Ensure(text, fallbackEmotion(input.Classification.Category))
	confidence := input.Classification.Confidence
	if confidence > 1.0 {
		confidence = 1.0
	}
	sources := input.Sources
	if len(sources) == 0 {
		sources = []string{"generation"}
	}

	return common.UnifiedResponse{
		Text:    normalized,
		Emotion: em,
		Meta: common.ResponseMeta{
			AgentName:   agentName,
			Confidence:  confidence,
			Language:    input.Classification.Language,
			Category:    input.Classification.Category,
			RequestType: input.Classification.RequestType,
			Sources:     sources,
		},
	}
}

// buildMessages 两种 prompt 形态：requestType 限定 / 开放式
func (s *Synthesizer) buildMessages(input SynthesisInput) []llm.Message {
	var system string
	if input.Classification.Language == common.LangJA {
		system = "あなたは施設の案内スタッフです。回答の先頭に [happy] [relaxed] [sad] [surprised] [neutral] のいずれかの感情タグを必ず1つ付けてください。"
	} else {
		system = "You are a facility guide. Always start your answer with exactly one emotion tag: [happy], [relaxed], [sad], [surprised] or [neutral]."
	}

	var user string
	if input.Classification.RequestType != "" && input.FilteredText != "" {
		topic := string(input.Classification.RequestType)
		if input.Classification.Language == common.LangJA {
			user = fmt.Sprintf("次の資料から「%s」に関する情報だけを1〜2文で抜き出して答えてください。\n\n資料:\n%s\n\n質問: %s", topic, input.FilteredText, input.Query)
		} else {
			user = fmt.Sprintf("Extract only the information about %q from the material below and answer in 1-2 sentences.\n\nMaterial:\n%s\n\nQuestion: %s", topic, input.FilteredText, input.Query)
		}
	} else {
		material := input.FilteredText
		if material == "" {
			material = input.ContextString
		}
		if input.Classification.Language == common.LangJA {
			user = fmt.Sprintf("次の資料を参考に簡潔に答えてください。\n\n資料:\n%s\n\n質問: %s", material, input.Query)
		} else {
			user = fmt.Sprintf("Answer concisely using the material below.\n\nMaterial:\n%s\n\nQuestion: %s", material, input.Query)
		}
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	if input.ContextString != "" && input.FilteredText != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "これまでの会話:\n" + input.ContextString})
	}
	messages = append(messages, llm.Message{Role: "user", Content: user})
	return messages
}

// Fallback 固定道歉响应：confidence ≤ 0.3, sources=["fallback"]
func (s *Synthesizer) Fallback(language common.Language, reason string) common.UnifiedResponse {
	metrics.FallbackTotal.WithLabelValues(reason).Inc()

	var text string
	if language == common.LangJA {
		text = "申し訳ありません、ただいま情報を取得できませんでした。もう一度お試しいただくか、スタッフにお声がけください。"
	} else {
		text = "I am sorry, I could not retrieve that information right now. Please try again or ask our staff."
	}
	em, normalized := emotion.Ensure(text, emotion.Sad)
	return common.UnifiedResponse{
		Text:    normalized,
		Emotion: em,
		Meta: common.ResponseMeta{
			AgentName:  agentName,
			Confidence: 0.3,
			Language:   language,
			Sources:    []string{"fallback"},
			ProcessingInfo: map[string]any{
				"fallback_reason": reason,
			},
		},
	}
}

// fallbackEmotion 生成端漏标时按 category 注入的默认情绪
func fallbackEmotion(category common.Category) emotion.Emotion {
	switch category {
	case common.CategoryMemory:
		return emotion.Surprised
	default:
		return emotion.Relaxed
	}
}
