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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-navigator/internal/emotion"
	"cafe-navigator/internal/memory"
	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/internal/retrieval"
)

// stubSearcher 返回固定片段的检索桩，记录收到的查询
type stubSearcher struct {
	result  retrieval.SearchResult
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ common.Language, _ retrieval.SearchOptions) (retrieval.SearchResult, error) {
	s.queries = append(s.queries, query)
	return s.result, nil
}

// failingSearcher 总是返回错误的检索桩
type failingSearcher struct{ err error }

func (s *failingSearcher) Search(context.Context, string, common.Language, retrieval.SearchOptions) (retrieval.SearchResult, error) {
	return retrieval.SearchResult{}, s.err
}

func cafeFragments() retrieval.SearchResult {
	return retrieval.SearchResult{
		Success: true,
		Fragments: []common.KnowledgeFragment{
			{Content: "サイノカフェは10時から18時まで営業しています。", Similarity: 0.8, Category: "business-hours", Language: common.LangJA},
			{Content: "エンジニアカフェは9時から22時まで営業しています。", Similarity: 0.85, Category: "business-hours", Language: common.LangJA},
			{Content: "サイノカフェのコーヒーは400円です。", Similarity: 0.6, Category: "pricing", Language: common.LangJA},
		},
	}
}

func newTestResolver(client *fakeLLM, searcher retrieval.Searcher, store memory.Store) *Resolver {
	return NewResolver(ResolverOptions{
		Client:   client,
		Searcher: searcher,
		Store:    store,
	})
}

// 场景 A：实体与话题都明确的查询
func TestResolveSainoHours(t *testing.T) {
	llmStub := &fakeLLM{reply: "[happy] サイノカフェは10時から18時まで営業しています。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, nil)

	resp := r.ResolveQuery(context.Background(), "サイノカフェの営業時間は？", common.LangJA, "")

	assert.Equal(t, common.CategoryHours, resp.Meta.Category)
	assert.Equal(t, common.RequestHours, resp.Meta.RequestType)
	assert.Equal(t, common.LangJA, resp.Meta.Language)
	assert.Equal(t, emotion.Happy, resp.Emotion)

	// 传给生成的资料只含サイノ的时刻句，异实体句与价格句被滤掉
	require.NotEmpty(t, llmStub.gotMessages)
	material := llmStub.gotMessages[len(llmStub.gotMessages)-1].Content
	assert.Contains(t, material, "10時から18時")
	assert.NotContains(t, material, "エンジニアカフェは9時から22時")
	assert.NotContains(t, material, "400円")
}

// 场景 B：省略查询从记忆继承实体与话题
func TestResolveShortContextInheritance(t *testing.T) {
	store := memory.NewMemStore(memory.Options{})
	defer store.Close()
	sessionID := uuid.NewString()
	addTestTurn(t, store, sessionID, memory.RoleUser, "エンジニアカフェについて教えて")

	llmStub := &fakeLLM{reply: "[relaxed] 土曜も9時から22時まで営業しています。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, store)

	r.ResolveQuery(context.Background(), "土曜は？", common.LangJA, sessionID)

	require.NotEmpty(t, searcher.queries)
	enhanced := searcher.queries[0]
	assert.Contains(t, enhanced, "エンジニアカフェ")
	assert.Contains(t, enhanced, "営業時間")
}

// 场景 C：模糊查询先澄清，选定实体后正常解决
func TestResolveAmbiguousThenNamed(t *testing.T) {
	store := memory.NewMemStore(memory.Options{})
	defer store.Close()
	sessionID := uuid.NewString()

	llmStub := &fakeLLM{reply: "[happy] サイノカフェは10時から18時まで営業しています。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, store)

	first := r.ResolveQuery(context.Background(), "カフェの営業時間について教えて", common.LangJA, sessionID)
	assert.Contains(t, first.Text, "エンジニアカフェ")
	assert.Contains(t, first.Text, "サイノカフェ")
	assert.Equal(t, []string{"clarification"}, first.Meta.Sources)

	second := r.ResolveQuery(context.Background(), "サイノカフェの方で", common.LangJA, sessionID)
	assert.NotEqual(t, []string{"clarification"}, second.Meta.Sources,
		"naming an option must not re-clarify")
}

// 场景 D："もう一つの方" 用内置知识直答未选择的实体
func TestResolveOtherOption(t *testing.T) {
	store := memory.NewMemStore(memory.Options{})
	defer store.Close()
	sessionID := uuid.NewString()

	llmStub := &fakeLLM{reply: "[happy] サイノカフェは10時から18時まで営業しています。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, store)

	r.ResolveQuery(context.Background(), "カフェの営業時間について教えて", common.LangJA, sessionID)
	r.ResolveQuery(context.Background(), "サイノカフェの方で", common.LangJA, sessionID)

	retrievalsBefore := len(searcher.queries)
	resp := r.ResolveQuery(context.Background(), "もう一つの方は？", common.LangJA, sessionID)

	assert.Contains(t, resp.Text, "エンジニアカフェ")
	assert.Equal(t, []string{"canned:engineer"}, resp.Meta.Sources)
	assert.Len(t, searcher.queries, retrievalsBefore, "other-option answer must not hit retrieval")
}

// 场景 E：检索失败返回降级应答，不返回错误
func TestResolveRetrievalFailure(t *testing.T) {
	llmStub := &fakeLLM{reply: "unused"}
	searcher := &stubSearcher{result: retrieval.SearchResult{Success: false}}
	r := newTestResolver(llmStub, searcher, nil)

	resp := r.ResolveQuery(context.Background(), "サイノカフェの営業時間は？", common.LangJA, "")

	assert.LessOrEqual(t, resp.Meta.Confidence, 0.3)
	assert.Equal(t, []string{"fallback"}, resp.Meta.Sources)
}

// 检索阶段错误统一包装为带阶段名的管线错误，空结果对应专用哨兵
func TestRetrieveStageErrorWrapping(t *testing.T) {
	classification := common.Classification{Category: common.CategoryHours, Language: common.LangJA}

	r := newTestResolver(nil, &failingSearcher{err: errors.New("connection refused")}, nil)
	_, err := r.runRetrieve(context.Background(), "サイノカフェの営業時間は？", classification)
	require.Error(t, err)
	require.True(t, common.IsPipelineError(err))
	perr, ok := common.GetPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, "retrieve", perr.Stage)
	assert.ErrorIs(t, err, common.ErrRetrievalFailed)

	r = newTestResolver(nil, &stubSearcher{result: retrieval.SearchResult{Success: false}}, nil)
	_, err = r.runRetrieve(context.Background(), "サイノカフェの営業時間は？", classification)
	assert.ErrorIs(t, err, common.ErrRetrievalEmpty)

	r = newTestResolver(nil, nil, nil)
	_, err = r.runRetrieve(context.Background(), "サイノカフェの営業時間は？", classification)
	assert.ErrorIs(t, err, common.ErrRetrievalFailed)
}

// 检索后端报错时对外仍是降级应答，错误不外泄
func TestResolveSearcherError(t *testing.T) {
	r := newTestResolver(&fakeLLM{reply: "unused"}, &failingSearcher{err: errors.New("connection refused")}, nil)

	resp := r.ResolveQuery(context.Background(), "サイノカフェの営業時間は？", common.LangJA, "")

	assert.LessOrEqual(t, resp.Meta.Confidence, 0.3)
	assert.Equal(t, []string{"fallback"}, resp.Meta.Sources)
}

// 不变量：所有应答开头恰好一个情绪标记
func TestResponseEmotionInvariant(t *testing.T) {
	store := memory.NewMemStore(memory.Options{})
	defer store.Close()

	llmStub := &fakeLLM{reply: "タグなしの応答です。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, store)

	queries := []string{
		"サイノカフェの営業時間は？",
		"カフェの営業時間について教えて",
		"もう一つの方は？",
		"",
	}
	for _, q := range queries {
		resp := r.ResolveQuery(context.Background(), q, common.LangJA, uuid.NewString())
		em, rest, ok := emotion.Parse(resp.Text)
		require.True(t, ok, "text must start with an emotion marker: %q", resp.Text)
		assert.Equal(t, resp.Emotion, em)
		_, _, again := emotion.Parse(rest)
		assert.False(t, again, "exactly one leading marker expected: %q", resp.Text)
	}
}

// memory-recall 绕过检索，直接基于上下文作答
func TestResolveMemoryRecall(t *testing.T) {
	store := memory.NewMemStore(memory.Options{})
	defer store.Close()
	sessionID := uuid.NewString()
	addTestTurn(t, store, sessionID, memory.RoleUser, "エンジニアカフェの営業時間を教えて")
	addTestTurn(t, store, sessionID, memory.RoleAssistant, "[happy] 9時から22時までです。")

	llmStub := &fakeLLM{reply: "[relaxed] 営業時間について聞かれました。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, store)

	resp := r.ResolveQuery(context.Background(), "さっき何を聞きましたか", common.LangJA, sessionID)

	assert.Empty(t, searcher.queries, "memory-recall must not hit retrieval")
	assert.Equal(t, []string{"memory"}, resp.Meta.Sources)
}

// 没有记忆存储也能完整运行（无状态降级）
func TestResolveStateless(t *testing.T) {
	llmStub := &fakeLLM{reply: "[happy] ご案内します。"}
	searcher := &stubSearcher{result: cafeFragments()}
	r := newTestResolver(llmStub, searcher, nil)

	resp := r.ResolveQuery(context.Background(), "エンジニアカフェの設備は？", common.LangJA, "session-x")
	assert.NotEmpty(t, resp.Text)
	assert.True(t, emotion.IsValid(resp.Emotion))
}
