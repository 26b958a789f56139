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
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"cafe-navigator/internal/pipeline/common"
)

// PgStore Postgres 实现。容量维护与插入走同一条语句（data-modifying CTE），
// 避免 read-then-write；语句失败时退回纯插入，容量作为尽力而为的上界。
type PgStore struct {
	pool    *pgxpool.Pool
	agentID string
	opts    Options
}

// NewPgStore 创建基于 PostgreSQL 的轮次存储
func NewPgStore(ctx context.Context, dsn, agentID string, opts Options) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if agentID == "" {
		agentID = "navigator"
	}
	return &PgStore{pool: pool, agentID: agentID, opts: opts.withDefaults()}, nil
}

// Close 关闭连接池
func (s *PgStore) Close() {
	s.pool.Close()
}

const insertWithBoundSQL = `
WITH ins AS (
	INSERT INTO conversation_turns
		(id, agent_id, session_id, role, content, emotion, request_type, entity, clarification, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), $9, $10, $11)
	RETURNING id
)
DELETE FROM conversation_turns
WHERE agent_id = $2
  AND (expires_at <= now()
       OR id NOT IN (
           SELECT id FROM conversation_turns
           WHERE agent_id = $2
           ORDER BY created_at DESC
           LIMIT $12))
  AND id NOT IN (SELECT id FROM ins)`

const insertOnlySQL = `
INSERT INTO conversation_turns
	(id, agent_id, session_id, role, content, emotion, request_type, entity, clarification, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), $9, $10, $11)`

// AddTurn 实现 Store
func (s *PgStore) AddTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return nil
	}
	if turn.ID == "" {
		turn.ID = "turn-" + uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if turn.ExpiresAt.IsZero() {
		turn.ExpiresAt = turn.CreatedAt.Add(s.opts.TTL)
	}
	var clar []byte
	if turn.Clarification != nil {
		clar, _ = json.Marshal(turn.Clarification)
	}

	args := []any{
		turn.ID, s.agentID, turn.SessionID, turn.Role, turn.Content,
		string(turn.Emotion), string(turn.RequestType), string(turn.Entity),
		clar, turn.CreatedAt, turn.ExpiresAt,
	}
	_, err := s.pool.Exec(ctx, insertWithBoundSQL, append(args, s.opts.MaxTurns)...)
	if err == nil {
		return nil
	}
	// fallback：容量维护暂时失效可接受，轮次本身不能丢
	_, err = s.pool.Exec(ctx, insertOnlySQL, args...)
	return err
}

// RecentTurns 实现 Store：旧→新，仅未过期
func (s *PgStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	if limit <= 0 {
		limit = s.opts.MaxTurns
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, content,
		       COALESCE(emotion,''), COALESCE(request_type,''), COALESCE(entity,''),
		       clarification, created_at, expires_at
		FROM conversation_turns
		WHERE agent_id = $1 AND session_id = $2 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT $3`,
		s.agentID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Turn
	for rows.Next() {
		var t Turn
		var emo, reqType, entity string
		var clar []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content,
			&emo, &reqType, &entity, &clar, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, err
		}
		t.Emotion = emotionFrom(emo)
		t.RequestType = common.RequestType(reqType)
		t.Entity = common.Entity(entity)
		if len(clar) > 0 {
			var rec common.ClarificationRecord
			if json.Unmarshal(clar, &rec) == nil {
				t.Clarification = &rec
			}
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 查询按新→旧取 limit 条，返回前反转为旧→新
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
