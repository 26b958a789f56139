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

package retrieval

import (
	"context"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/errors"
)

// EinoSearcher 把 eino retriever 适配为 Searcher。
// 片段元数据约定：category / language / title 三个 key。
type EinoSearcher struct {
	retriever retriever.Retriever
	threshold float64 // 构造期默认阈值，可被 opts.Threshold 覆盖
}

// NewEinoSearcher 创建向量检索适配器
func NewEinoSearcher(r retriever.Retriever, threshold float64) *EinoSearcher {
	return &EinoSearcher{retriever: r, threshold: threshold}
}

// Search 实现 Searcher
func (s *EinoSearcher) Search(ctx context.Context, query string, language common.Language, opts SearchOptions) (SearchResult, error) {
	if query == "" {
		return SearchResult{}, errors.Wrap(errors.ErrInvalidArg, "empty query")
	}

	threshold := s.threshold
	if opts.Threshold > 0 {
		threshold = opts.Threshold
	}

	var retrOpts []retriever.Option
	if opts.Limit > 0 {
		retrOpts = append(retrOpts, retriever.WithTopK(opts.Limit))
	}
	if threshold > 0 {
		retrOpts = append(retrOpts, retriever.WithScoreThreshold(threshold))
	}

	docs, err := s.retriever.Retrieve(ctx, query, retrOpts...)
	if err != nil {
		return SearchResult{}, errors.Wrap(err, "vector retrieve")
	}

	fragments := make([]common.KnowledgeFragment, 0, len(docs))
	for _, doc := range docs {
		frag := docToFragment(doc)
		if frag.Content == "" {
			continue
		}
		if frag.Similarity < threshold {
			continue
		}
		if opts.Category != "" && frag.Category != "" && frag.Category != opts.Category {
			continue
		}
		if frag.Language != "" && frag.Language != language {
			continue
		}
		fragments = append(fragments, frag)
		if opts.Limit > 0 && len(fragments) >= opts.Limit {
			break
		}
	}

	return SearchResult{Success: len(fragments) > 0, Fragments: fragments}, nil
}

func docToFragment(doc *schema.Document) common.KnowledgeFragment {
	frag := common.KnowledgeFragment{
		Content:    doc.Content,
		Similarity: doc.Score(),
	}
	if doc.MetaData == nil {
		return frag
	}
	if v, ok := doc.MetaData["category"].(string); ok {
		frag.Category = v
	}
	if v, ok := doc.MetaData["language"].(string); ok {
		frag.Language = common.Language(v)
	}
	if v, ok := doc.MetaData["title"].(string); ok {
		frag.Title = v
	}
	return frag
}
