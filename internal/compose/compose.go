// Package compose generates short-form draft content with the provider and
// stores it for later review. Drafts are never published automatically.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/replyloop/replyloop/internal/cron"
	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/store"
)

// HandlerDraft is the handler name for scheduled draft generation.
const HandlerDraft = "compose.draft"

// defaultPrompts is the rotation used when the job has no prompt settings.
var defaultPrompts = []string{
	"Write an engaging tweet about technology and AI",
	"Write a motivational tweet about productivity",
	"Share an interesting fact about AI",
	"Write a thought-provoking question about technology",
}

// Composer generates drafts on a schedule.
type Composer struct {
	drafts   store.DraftStore
	ai       provider.Provider
	settings *settings.Service
	logger   *slog.Logger
}

// NewComposer wires a draft composer.
func NewComposer(drafts store.DraftStore, ai provider.Provider, svc *settings.Service, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{drafts: drafts, ai: ai, settings: svc, logger: logger}
}

// Draft generates one piece of content and stores it with draft status.
// The prompt comes from the job's "prompt" setting when set, otherwise a
// random entry from the default rotation. A params["prompt"] value wins
// over both, which is how the conversational trigger passes instructions.
func (c *Composer) Draft(ctx context.Context, job string, params map[string]any) (store.Draft, error) {
	if c.ai == nil {
		return store.Draft{}, fmt.Errorf("compose: %w", provider.ErrNotConfigured)
	}

	prompt, err := c.settings.GetString(ctx, job, "prompt", "")
	if err != nil {
		return store.Draft{}, fmt.Errorf("compose: resolve prompt: %w", err)
	}
	if prompt == "" {
		prompt = defaultPrompts[rand.IntN(len(defaultPrompts))]
	}
	if v, ok := params["prompt"].(string); ok && v != "" {
		prompt = v
	}

	resp, err := c.ai.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return store.Draft{}, fmt.Errorf("compose: generate: %w", err)
	}
	if resp.Content == "" {
		return store.Draft{}, fmt.Errorf("compose: generate: empty completion")
	}

	id, err := c.drafts.InsertDraft(ctx, resp.Content)
	if err != nil {
		return store.Draft{}, fmt.Errorf("compose: save draft: %w", err)
	}

	c.logger.Info("compose: draft saved", "job", job, "draft", id)
	return store.Draft{ID: id, Content: resp.Content, Status: store.DraftStatusDraft}, nil
}

// RegisterHandlers adds the compose handlers to the registry.
func RegisterHandlers(reg *cron.HandlerRegistry, c *Composer) error {
	if err := reg.Register(HandlerDraft, func(ctx context.Context, params map[string]any) error {
		job, _ := params[cron.ParamJob].(string)
		_, err := c.Draft(ctx, job, params)
		return err
	}); err != nil {
		return fmt.Errorf("compose: register %s: %w", HandlerDraft, err)
	}
	return nil
}
