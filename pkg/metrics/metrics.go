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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		QueryTotal, QueryDuration, StageDuration,
		FallbackTotal, ClarificationTotal,
		CacheHitTotal, CacheMissTotal,
		MemoryTurnsTotal,
	)
}

// QueryTotal 查询总数（按 category 与结局）
var QueryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "navigator_query_total",
		Help: "查询总数（按 category 与结局）",
	},
	[]string{"category", "outcome"}, // ok | fallback | clarification
)

// QueryDuration 端到端查询耗时（秒）
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "navigator_query_duration_seconds",
		Help:    "端到端查询耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"language"},
)

// StageDuration 管线各阶段耗时（秒）
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "navigator_stage_duration_seconds",
		Help:    "管线各阶段耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"}, // classify | enhance | retrieve | score | filter | generate
)

// FallbackTotal 降级响应总数（按原因）
var FallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "navigator_fallback_total",
		Help: "降级响应总数（按原因）",
	},
	[]string{"reason"}, // retrieval_empty | generation_failed | timeout
)

// ClarificationTotal 追问澄清总数
var ClarificationTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "navigator_clarification_total",
		Help: "追问澄清总数",
	},
)

// CacheHitTotal 检索缓存命中数
var CacheHitTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "navigator_cache_hit_total",
		Help: "检索缓存命中数",
	},
)

// CacheMissTotal 检索缓存未命中数
var CacheMissTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "navigator_cache_miss_total",
		Help: "检索缓存未命中数",
	},
)

// MemoryTurnsTotal 写入记忆存储的轮次总数（按 role）
var MemoryTurnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "navigator_memory_turns_total",
		Help: "写入记忆存储的轮次总数",
	},
	[]string{"role"}, // user | assistant
)

// WritePrometheus 将 Prometheus 文本格式写入 w
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
