// Package ingest pulls comments from the configured source into the store.
// Fetching is idempotent: each comment is keyed by its platform ID, and a
// page that was partially processed on a previous run converges on retry.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/replyloop/replyloop/internal/provider"
	"github.com/replyloop/replyloop/internal/settings"
	"github.com/replyloop/replyloop/internal/source"
	"github.com/replyloop/replyloop/internal/store"
)

// Item error policies. With "continue" a failing comment is logged and the
// rest of the page still lands; "abort" stops the video at the first failure.
const (
	OnItemErrorContinue = "continue"
	OnItemErrorAbort    = "abort"
)

// Default page sizes, matching the two fetch profiles: the reply loop reads
// a smaller recent page, the analysis sweep reads the maximum.
const (
	defaultCheckPageSize    = 50
	defaultAnalysisPageSize = 100
)

const defaultReplyPrompt = "Write a short, friendly reply to this YouTube comment. " +
	"Do not use hashtags. Comment:"

// Stats summarizes one ingest run.
type Stats struct {
	Videos  int `json:"videos"`
	Fetched int `json:"fetched"`
	New     int `json:"new"`
	Replied int `json:"replied"`
	Failed  int `json:"failed"`
}

// Pipeline ingests comments for all tracked videos.
type Pipeline struct {
	videos   store.VideoStore
	comments store.CommentStore
	src      source.CommentSource
	ai       provider.Provider
	settings *settings.Service
	logger   *slog.Logger
}

// NewPipeline wires an ingest pipeline. ai may be nil when no provider
// module is loaded; auto-reply then fails with provider.ErrNotConfigured.
func NewPipeline(videos store.VideoStore, comments store.CommentStore, src source.CommentSource, ai provider.Provider, svc *settings.Service, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		videos:   videos,
		comments: comments,
		src:      src,
		ai:       ai,
		settings: svc,
		logger:   logger,
	}
}

// runOptions are the per-run knobs, resolved from job settings and params.
type runOptions struct {
	job         string
	pageSize    int
	autoReply   bool
	replyPrompt string
	onItemError string
}

// resolveOptions reads job-scoped settings with params as overrides.
func (p *Pipeline) resolveOptions(ctx context.Context, job string, params map[string]any, defaultPage int) (runOptions, error) {
	opts := runOptions{
		job:         job,
		pageSize:    defaultPage,
		replyPrompt: defaultReplyPrompt,
		onItemError: OnItemErrorContinue,
	}

	var err error
	opts.pageSize, err = p.settings.GetInt(ctx, job, "page_size", defaultPage)
	if err != nil {
		return opts, err
	}
	opts.autoReply, err = p.settings.GetBool(ctx, job, "auto_reply", false)
	if err != nil {
		return opts, err
	}
	opts.replyPrompt, err = p.settings.GetString(ctx, job, "reply_prompt", defaultReplyPrompt)
	if err != nil {
		return opts, err
	}
	opts.onItemError, err = p.settings.GetString(ctx, job, "on_item_error", OnItemErrorContinue)
	if err != nil {
		return opts, err
	}

	if v, ok := params["page_size"].(int); ok && v > 0 {
		opts.pageSize = v
	}
	if v, ok := params["on_item_error"].(string); ok && v != "" {
		opts.onItemError = v
	}
	return opts, nil
}

// CheckComments fetches the recent comment page for every tracked video,
// stores unseen comments, optionally replies, and stamps each video's
// last-checked time.
func (p *Pipeline) CheckComments(ctx context.Context, job string, params map[string]any) (Stats, error) {
	opts, err := p.resolveOptions(ctx, job, params, defaultCheckPageSize)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: resolve options: %w", err)
	}
	return p.sweep(ctx, opts, true)
}

// FetchAnalysis fetches the maximum comment page for every tracked video
// and stores unseen comments without replying. Used to build a corpus for
// later inspection.
func (p *Pipeline) FetchAnalysis(ctx context.Context, job string, params map[string]any) (Stats, error) {
	opts, err := p.resolveOptions(ctx, job, params, defaultAnalysisPageSize)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: resolve options: %w", err)
	}
	opts.autoReply = false
	return p.sweep(ctx, opts, false)
}

// sweep runs one ingest pass over all tracked videos.
func (p *Pipeline) sweep(ctx context.Context, opts runOptions, touchChecked bool) (Stats, error) {
	videos, err := p.videos.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: list videos: %w", err)
	}

	stats := Stats{Videos: len(videos)}
	if len(videos) == 0 {
		p.logger.Info("ingest: no videos tracked")
		return stats, nil
	}

	var errs []error
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := p.sweepVideo(ctx, video, opts, touchChecked, &stats); err != nil {
			if opts.onItemError == OnItemErrorAbort {
				return stats, err
			}
			errs = append(errs, err)
			p.logger.Error("ingest: video failed, continuing",
				"job", opts.job,
				"video", video.VideoID,
				"error", err,
			)
		}
	}

	p.logger.Info("ingest: sweep completed",
		"job", opts.job,
		"videos", stats.Videos,
		"fetched", stats.Fetched,
		"new", stats.New,
		"replied", stats.Replied,
		"failed", stats.Failed,
	)
	return stats, errors.Join(errs...)
}

// sweepVideo ingests one video's comment page. Its error is subject to the
// item error policy in the caller: a failing video does not keep the rest
// of the sweep from running unless the policy is abort.
func (p *Pipeline) sweepVideo(ctx context.Context, video store.Video, opts runOptions, touchChecked bool, stats *Stats) error {
	comments, err := p.src.Comments(ctx, video.VideoID, opts.pageSize)
	if err != nil {
		return fmt.Errorf("ingest: fetch comments for %s: %w", video.VideoID, err)
	}
	stats.Fetched += len(comments)

	for _, comment := range comments {
		err := p.ingestComment(ctx, comment, opts, stats)
		if err == nil {
			continue
		}
		stats.Failed++
		if opts.onItemError == OnItemErrorAbort {
			return fmt.Errorf("ingest: comment %s: %w", comment.ID, err)
		}
		p.logger.Error("ingest: comment failed, continuing",
			"job", opts.job,
			"video", video.VideoID,
			"comment", comment.ID,
			"error", err,
		)
	}

	if touchChecked {
		if err := p.videos.TouchLastChecked(ctx, video.VideoID, time.Now()); err != nil {
			return fmt.Errorf("ingest: touch last checked for %s: %w", video.VideoID, err)
		}
	}
	return nil
}

// ingestComment stores one comment if unseen, replying when the policy
// allows it. Comments already in the store are skipped silently, which is
// what makes re-running a page safe.
func (p *Pipeline) ingestComment(ctx context.Context, c source.Comment, opts runOptions, stats *Stats) error {
	seen, err := p.comments.Seen(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("check seen: %w", err)
	}
	if seen {
		return nil
	}

	row := store.Comment{
		CommentID:       c.ID,
		VideoID:         c.VideoID,
		Text:            c.Text,
		AuthorName:      c.Author,
		AuthorChannelID: c.AuthorID,
		Status:          store.StatusPending,
	}
	if err := p.comments.Insert(ctx, row); err != nil {
		// A concurrent run got there first. That run owns the comment.
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("insert: %w", err)
	}
	stats.New++

	p.logger.Info("ingest: new comment",
		"job", opts.job,
		"video", c.VideoID,
		"comment", c.ID,
		"author", c.Author,
	)

	if !opts.autoReply {
		return nil
	}

	if err := p.reply(ctx, c, opts); err != nil {
		// The comment is already stored as pending; a failed reply must
		// not undo the ingest.
		return fmt.Errorf("reply: %w", err)
	}
	stats.Replied++
	return nil
}

// reply generates a reply with the provider, posts it, and marks the
// comment replied.
func (p *Pipeline) reply(ctx context.Context, c source.Comment, opts runOptions) error {
	if p.ai == nil {
		return provider.ErrNotConfigured
	}

	resp, err := p.ai.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: fmt.Sprintf("%s %q", opts.replyPrompt, c.Text)},
		},
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if resp.Content == "" {
		return fmt.Errorf("generate: empty completion")
	}

	if err := p.src.Reply(ctx, c.ID, resp.Content); err != nil {
		return fmt.Errorf("post: %w", err)
	}

	if err := p.comments.MarkReplied(ctx, c.ID, resp.Content, time.Now()); err != nil {
		return fmt.Errorf("mark replied: %w", err)
	}

	p.logger.Info("ingest: replied to comment", "job", opts.job, "comment", c.ID)
	return nil
}
