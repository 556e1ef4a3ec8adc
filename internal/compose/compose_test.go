package compose

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/store"
)

type fakeProvider struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeProvider) Complete(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if len(req.Messages) > 0 {
		f.lastPrompt = req.Messages[len(req.Messages)-1].Content
	}
	if f.err != nil {
		return provider.CompletionResponse{}, f.err
	}
	return provider.CompletionResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Stream(context.Context, provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }

func newComposer(ai provider.Provider) (*Composer, *store.Mem, *settings.Service) {
	mem := store.NewMem()
	svc := settings.NewService(mem.Settings())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewComposer(mem, ai, svc, logger), mem, svc
}

func TestDraftSaved(t *testing.T) {
	t.Parallel()
	ai := &fakeProvider{reply: "shipping beats perfection"}
	c, mem, _ := newComposer(ai)

	draft, err := c.Draft(context.Background(), "twitter_ai", nil)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.Content != "shipping beats perfection" || draft.Status != store.DraftStatusDraft {
		t.Errorf("draft = %+v", draft)
	}

	drafts, err := mem.ListDrafts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Content != "shipping beats perfection" {
		t.Errorf("stored drafts = %+v", drafts)
	}
}

func TestDraftPromptFromSettings(t *testing.T) {
	t.Parallel()
	ai := &fakeProvider{reply: "ok"}
	c, _, svc := newComposer(ai)
	ctx := context.Background()

	if err := svc.Set(ctx, "twitter_ai", "prompt", "write about Go"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := c.Draft(ctx, "twitter_ai", nil); err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if ai.lastPrompt != "write about Go" {
		t.Errorf("prompt = %q", ai.lastPrompt)
	}
}

func TestDraftPromptFromParams(t *testing.T) {
	t.Parallel()
	ai := &fakeProvider{reply: "ok"}
	c, _, svc := newComposer(ai)
	ctx := context.Background()

	if err := svc.Set(ctx, "twitter_ai", "prompt", "from settings"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := c.Draft(ctx, "twitter_ai", map[string]any{"prompt": "from params"}); err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if ai.lastPrompt != "from params" {
		t.Errorf("params prompt must win, got %q", ai.lastPrompt)
	}
}

func TestDraftProviderError(t *testing.T) {
	t.Parallel()
	ai := &fakeProvider{err: provider.ErrRateLimit}
	c, mem, _ := newComposer(ai)

	_, err := c.Draft(context.Background(), "twitter_ai", nil)
	if !errors.Is(err, provider.ErrRateLimit) {
		t.Fatalf("expected provider error, got %v", err)
	}

	drafts, _ := mem.ListDrafts(context.Background())
	if len(drafts) != 0 {
		t.Error("no draft should be stored on failure")
	}
}

func TestDraftNoProvider(t *testing.T) {
	t.Parallel()
	c, _, _ := newComposer(nil)

	_, err := c.Draft(context.Background(), "twitter_ai", nil)
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
