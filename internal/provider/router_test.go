package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeProvider struct {
	id    string
	reply string
	err   error
	calls int
}

func (f *fakeProvider) ID() string   { return f.id }
func (f *fakeProvider) Name() string { return f.id }

func (f *fakeProvider) Chat(_ context.Context, _ *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Content: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeProvider) HealthCheck(context.Context) error { return f.err }

func TestRouteUsesDefaultProvider(t *testing.T) {
	r := NewRouter(zap.NewNop())
	first := &fakeProvider{id: "first", reply: "from first"}
	r.Register(first)
	r.Register(&fakeProvider{id: "second", reply: "from second"})

	resp, err := r.Route(context.Background(), "p1", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from first" {
		t.Errorf("reply %q, want default provider's", resp.Content)
	}
}

func TestRouteHonorsBinding(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "first", reply: "from first"})
	r.Register(&fakeProvider{id: "second", reply: "from second"})
	r.Bind("p1", "second")

	resp, err := r.Route(context.Background(), "p1", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from second" {
		t.Errorf("reply %q, want bound provider's", resp.Content)
	}

	// Other personas keep the default.
	resp, err = r.Route(context.Background(), "p2", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from first" {
		t.Errorf("reply %q, want default provider's", resp.Content)
	}
}

func TestRouteWalksFallbackChain(t *testing.T) {
	r := NewRouter(zap.NewNop())
	primary := &fakeProvider{id: "primary", err: errors.New("down")}
	broken := &fakeProvider{id: "broken", err: errors.New("also down")}
	backup := &fakeProvider{id: "backup", reply: "from backup"}
	r.Register(primary)
	r.Register(broken)
	r.Register(backup)
	r.SetFallbacks("p1", []string{"broken", "backup"})

	resp, err := r.Route(context.Background(), "p1", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("reply %q, want backup's", resp.Content)
	}
	if primary.calls != 1 || broken.calls != 1 || backup.calls != 1 {
		t.Errorf("call counts: primary=%d broken=%d backup=%d", primary.calls, broken.calls, backup.calls)
	}
}

func TestRouteAllProvidersFail(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "primary", err: errors.New("down")})
	r.Register(&fakeProvider{id: "backup", err: errors.New("also down")})
	r.SetFallbacks("p1", []string{"backup"})

	_, err := r.Route(context.Background(), "p1", &ChatRequest{})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !strings.Contains(err.Error(), "all providers failed") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestRouteNoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Route(context.Background(), "p1", &ChatRequest{}); err == nil {
		t.Fatal("expected error with no providers registered")
	}
}

func TestRouteStopsOnCancelledContext(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "primary", err: errors.New("down")})
	backup := &fakeProvider{id: "backup", reply: "never"}
	r.Register(backup)
	r.SetFallbacks("p1", []string{"backup"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Route(ctx, "p1", &ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backup.calls != 0 {
		t.Error("fallback attempted after cancellation")
	}
}
