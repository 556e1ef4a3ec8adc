package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/replyloop/replyloop/internal/store"
)

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	svc := NewService(store.NewMem().Settings())
	ctx := context.Background()

	if err := svc.Set(ctx, "youtube_comments", "prompt", "be friendly"); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got string
	if err := svc.Get(ctx, "youtube_comments", "prompt", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "be friendly" {
		t.Errorf("got %q", got)
	}
}

func TestGetUnset(t *testing.T) {
	t.Parallel()
	svc := NewService(store.NewMem().Settings())

	var v string
	err := svc.Get(context.Background(), "job", "missing", &v)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobScoping(t *testing.T) {
	t.Parallel()
	svc := NewService(store.NewMem().Settings())
	ctx := context.Background()

	if err := svc.Set(ctx, "job_a", "prompt", "for A"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Set(ctx, "job_b", "prompt", "for B"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := svc.GetString(ctx, "job_a", "prompt", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "for A" {
		t.Errorf("job_a prompt = %q", got)
	}
}

func TestTypedFallbacks(t *testing.T) {
	t.Parallel()
	svc := NewService(store.NewMem().Settings())
	ctx := context.Background()

	b, err := svc.GetBool(ctx, "job", "auto_reply", false)
	if err != nil || b {
		t.Errorf("GetBool fallback = %v, %v", b, err)
	}

	n, err := svc.GetInt(ctx, "job", "page_size", 100)
	if err != nil || n != 100 {
		t.Errorf("GetInt fallback = %v, %v", n, err)
	}

	if err := svc.Set(ctx, "job", "auto_reply", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Set(ctx, "job", "page_size", 25); err != nil {
		t.Fatalf("set: %v", err)
	}

	b, err = svc.GetBool(ctx, "job", "auto_reply", false)
	if err != nil || !b {
		t.Errorf("GetBool = %v, %v", b, err)
	}
	n, err = svc.GetInt(ctx, "job", "page_size", 100)
	if err != nil || n != 25 {
		t.Errorf("GetInt = %v, %v", n, err)
	}
}

func TestAllStripsPrefix(t *testing.T) {
	t.Parallel()
	svc := NewService(store.NewMem().Settings())
	ctx := context.Background()

	if err := svc.SetAll(ctx, "job", map[string]any{
		"prompt":    "hello",
		"page_size": 10,
	}); err != nil {
		t.Fatalf("set all: %v", err)
	}

	all, err := svc.All(ctx, "job")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(all))
	}
	if string(all["prompt"]) != `"hello"` {
		t.Errorf("prompt raw = %s", all["prompt"])
	}
	if string(all["page_size"]) != `10` {
		t.Errorf("page_size raw = %s", all["page_size"])
	}
}
