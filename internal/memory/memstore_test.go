package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cafe-navigator/internal/pipeline/common"
)

func TestMemStore_AddTurn_RecentTurns(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(Options{})
	_ = s.AddTurn(ctx, &Turn{SessionID: "s1", Role: RoleUser, Content: "エンジニアカフェの営業時間は？"})
	_ = s.AddTurn(ctx, &Turn{SessionID: "s1", Role: RoleAssistant, Content: "9時から22時です"})
	_ = s.AddTurn(ctx, &Turn{SessionID: "s2", Role: RoleUser, Content: "other session"})

	turns, err := s.RecentTurns(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("order should be oldest first: %v %v", turns[0].Role, turns[1].Role)
	}
	if turns[0].ID == "" {
		t.Error("id should be assigned")
	}
}

func TestMemStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(Options{TTL: 10 * time.Millisecond})
	_ = s.AddTurn(ctx, &Turn{SessionID: "s1", Role: RoleUser, Content: "x"})
	time.Sleep(20 * time.Millisecond)
	turns, err := s.RecentTurns(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expired turns should not be returned, got %d", len(turns))
	}
}

func TestMemStore_CapacityBound(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(Options{MaxTurns: 5})
	for i := 0; i < 12; i++ {
		_ = s.AddTurn(ctx, &Turn{SessionID: "s1", Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	turns, _ := s.RecentTurns(ctx, "s1", 100)
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns after eviction, got %d", len(turns))
	}
	if turns[0].Content != "m7" || turns[4].Content != "m11" {
		t.Errorf("oldest should be evicted first: %s .. %s", turns[0].Content, turns[4].Content)
	}
}

func TestMemStore_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(Options{MaxTurns: 50})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			sid := fmt.Sprintf("s%d", g%2)
			for i := 0; i < 25; i++ {
				_ = s.AddTurn(ctx, &Turn{SessionID: sid, Role: RoleUser, Content: "c"})
			}
		}(g)
	}
	wg.Wait()
	a, _ := s.RecentTurns(ctx, "s0", 100)
	b, _ := s.RecentTurns(ctx, "s1", 100)
	if len(a)+len(b) != 50 {
		t.Errorf("bound should hold under concurrency: %d + %d", len(a), len(b))
	}
}

func TestContextBuilder_Inheritance(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(Options{})
	_ = s.AddTurn(ctx, &Turn{SessionID: "s1", Role: RoleUser, Content: "エンジニアカフェについて教えて"})
	_ = s.AddTurn(ctx, &Turn{
		SessionID: "s1", Role: RoleAssistant, Content: "[relaxed] ご案内します",
		Entity: common.EntityEngineer, RequestType: common.RequestHours,
	})

	mc := NewContextBuilder(s, 10, nil).Build(ctx, "s1")
	if mc.InheritedEntity != common.EntityEngineer {
		t.Errorf("inherited entity: %v", mc.InheritedEntity)
	}
	if mc.InheritedRequestType != common.RequestHours {
		t.Errorf("inherited request type: %v", mc.InheritedRequestType)
	}
	if !mc.HasInheritance() {
		t.Error("HasInheritance")
	}
	// context string 不携带情绪标记
	if want := "user: エンジニアカフェについて教えて\nassistant: ご案内します"; mc.ContextString != want {
		t.Errorf("context string: %q", mc.ContextString)
	}
}

func TestContextBuilder_EntityFromContent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(Options{})
	_ = s.AddTurn(ctx, &Turn{SessionID: "s1", Role: RoleUser, Content: "サイノカフェは静かですか"})
	mc := NewContextBuilder(s, 10, nil).Build(ctx, "s1")
	if mc.InheritedEntity != common.EntitySaino {
		t.Errorf("entity should be detected from content: %v", mc.InheritedEntity)
	}
}

func TestContextBuilder_NoSession(t *testing.T) {
	mc := NewContextBuilder(NewMemStore(Options{}), 10, nil).Build(context.Background(), "")
	if mc.HasInheritance() || len(mc.RecentTurns) != 0 {
		t.Errorf("empty session should build empty context: %+v", mc)
	}
}
