package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClient struct {
	mu       sync.Mutex
	inflight int32
	maxSeen  int32
	calls    int32
}

func (f *fakeClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	cur := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	f.mu.Lock()
	if cur > f.maxSeen {
		f.maxSeen = cur
	}
	f.mu.Unlock()
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(5 * time.Millisecond)
	return "ok", nil
}

func (f *fakeClient) Model() string    { return "fake" }
func (f *fakeClient) Provider() string { return "fake" }

func TestRateLimitedClient_ConcurrencyBound(t *testing.T) {
	inner := &fakeClient{}
	c := NewRateLimitedClient(inner, 0, 2)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.ChatWithContext(context.Background(), nil, GenerateOptions{})
		}()
	}
	wg.Wait()
	if inner.maxSeen > 2 {
		t.Errorf("concurrency bound violated: %d", inner.maxSeen)
	}
	if inner.calls != 8 {
		t.Errorf("all calls should go through: %d", inner.calls)
	}
}

func TestRateLimitedClient_ContextCancel(t *testing.T) {
	inner := &fakeClient{}
	c := NewRateLimitedClient(inner, 0.001, 0) // 极低速率，首个 token 之后全部等待
	_, err := c.ChatWithContext(context.Background(), nil, GenerateOptions{})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.ChatWithContext(ctx, nil, GenerateOptions{}); err == nil {
		t.Error("second call should fail on context deadline")
	}
}

func TestRateLimitedClient_NoLimits(t *testing.T) {
	inner := &fakeClient{}
	c := NewRateLimitedClient(inner, 0, 0)
	out, err := c.ChatWithContext(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	if err != nil || out != "ok" {
		t.Errorf("passthrough: %q %v", out, err)
	}
	if c.Model() != "fake" || c.Provider() != "fake" {
		t.Error("proxy accessors")
	}
}
