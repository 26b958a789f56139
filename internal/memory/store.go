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

// Package memory 短期对话记忆：append-only、限时限量的轮次日志。
// 写入尽力而为，读取只返回未过期轮次；存储不可用时上层降级为无状态。
package memory

import (
	"context"
	"time"

	"cafe-navigator/internal/emotion"
	"cafe-navigator/internal/pipeline/common"
)

const (
	// DefaultTTL 轮次默认存活时长
	DefaultTTL = 180 * time.Second
	// DefaultMaxTurns 每 agent 默认保留轮次上限
	DefaultMaxTurns = 100
)

// 角色常量
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn 一轮对话。写入后不可变，到期或超出容量上限后被剔除。
type Turn struct {
	ID            string                      `json:"id"`
	SessionID     string                      `json:"session_id"`
	Role          string                      `json:"role"` // user | assistant
	Content       string                      `json:"content"`
	Emotion       emotion.Emotion             `json:"emotion,omitempty"`
	RequestType   common.RequestType          `json:"request_type,omitempty"`
	Entity        common.Entity               `json:"entity,omitempty"`
	Clarification *common.ClarificationRecord `json:"clarification,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	ExpiresAt     time.Time                   `json:"expires_at"`
}

// Expired 该轮次在 now 时刻是否已过期
func (t *Turn) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Store 轮次存储抽象。AddTurn 为 append-only；并发 append 下容量
// 维护必须原子（或明示为尽力而为的 fallback）。
type Store interface {
	// AddTurn 追加一轮对话；错误由调用方记日志，不中断请求
	AddTurn(ctx context.Context, turn *Turn) error
	// RecentTurns 返回该 session 未过期的最近 limit 轮，旧→新
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error)
	// Close 释放底层资源
	Close()
}

// Options 存储参数；零值使用默认
type Options struct {
	TTL      time.Duration
	MaxTurns int
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	return o
}
