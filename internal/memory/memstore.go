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

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore 内存实现（map + mutex）。容量维护在写锁内完成，天然原子。
type MemStore struct {
	mu    sync.RWMutex
	turns []*Turn
	opts  Options
}

// NewMemStore 创建内存轮次存储
func NewMemStore(opts Options) *MemStore {
	return &MemStore{opts: opts.withDefaults()}
}

// AddTurn 实现 Store
func (s *MemStore) AddTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *turn
	if cp.ID == "" {
		cp.ID = "turn-" + uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = cp.CreatedAt.Add(s.opts.TTL)
	}
	s.turns = append(s.turns, &cp)
	s.evictLocked(now)
	return nil
}

// evictLocked 剔除过期轮次并裁到容量上限，最旧先出
func (s *MemStore) evictLocked(now time.Time) {
	kept := s.turns[:0]
	for _, t := range s.turns {
		if !t.Expired(now) {
			kept = append(kept, t)
		}
	}
	if len(kept) > s.opts.MaxTurns {
		kept = kept[len(kept)-s.opts.MaxTurns:]
	}
	s.turns = kept
}

// RecentTurns 实现 Store：旧→新，仅未过期
func (s *MemStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []*Turn
	for i := len(s.turns) - 1; i >= 0; i-- {
		t := s.turns[i]
		if t.SessionID != sessionID || t.Expired(now) {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	// 收集时新→旧，返回前反转
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close 实现 Store
func (s *MemStore) Close() {}
