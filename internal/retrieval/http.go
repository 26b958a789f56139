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
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"cafe-navigator/internal/pipeline/common"
	"cafe-navigator/pkg/errors"
)

// HTTPSearcher 远程搜索服务后端。请求 POST {endpoint}/search，
// 响应为 {success, results:[{content,similarity,category,language,title}]}。
type HTTPSearcher struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPSearcher 创建 HTTP 检索客户端
func NewHTTPSearcher(endpoint string, timeout time.Duration) *HTTPSearcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPSearcher{client: client, endpoint: endpoint}
}

type httpSearchRequest struct {
	Query     string  `json:"query"`
	Language  string  `json:"language"`
	Category  string  `json:"category,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

type httpSearchResponse struct {
	Success bool `json:"success"`
	Results []struct {
		Content    string  `json:"content"`
		Similarity float64 `json:"similarity"`
		Category   string  `json:"category"`
		Language   string  `json:"language"`
		Title      string  `json:"title,omitempty"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// Search 实现 Searcher
func (s *HTTPSearcher) Search(ctx context.Context, query string, language common.Language, opts SearchOptions) (SearchResult, error) {
	if query == "" {
		return SearchResult{}, errors.Wrap(errors.ErrInvalidArg, "empty query")
	}

	var result httpSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(httpSearchRequest{
			Query:     query,
			Language:  string(language),
			Category:  opts.Category,
			Limit:     opts.Limit,
			Threshold: opts.Threshold,
		}).
		SetResult(&result).
		Post(s.endpoint + "/search")
	if err != nil {
		return SearchResult{}, errors.Wrap(err, "search service request")
	}
	if resp.IsError() {
		return SearchResult{}, fmt.Errorf("search service 返回错误状态: %d", resp.StatusCode())
	}
	if !result.Success {
		return SearchResult{Success: false}, nil
	}

	fragments := make([]common.KnowledgeFragment, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Content == "" {
			continue
		}
		if opts.Threshold > 0 && r.Similarity < opts.Threshold {
			continue
		}
		fragments = append(fragments, common.KnowledgeFragment{
			Content:    r.Content,
			Similarity: r.Similarity,
			Category:   r.Category,
			Language:   common.Language(r.Language),
			Title:      r.Title,
		})
	}
	return SearchResult{Success: len(fragments) > 0, Fragments: fragments}, nil
}
