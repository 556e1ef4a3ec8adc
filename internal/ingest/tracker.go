package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/replyloop/replyloop/internal/source"
	"github.com/replyloop/replyloop/internal/store"
)

// Tracker registers videos for comment monitoring.
type Tracker struct {
	videos store.VideoStore
	src    source.CommentSource
	logger *slog.Logger
}

// NewTracker creates a tracker over the given store and source.
func NewTracker(videos store.VideoStore, src source.CommentSource, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{videos: videos, src: src, logger: logger}
}

// Track starts monitoring the video, snapshotting its metadata from the
// platform. Tracking an already-tracked video returns the existing record
// unchanged.
func (t *Tracker) Track(ctx context.Context, videoID string) (store.Video, error) {
	existing, err := t.videos.Get(ctx, videoID)
	if err == nil {
		t.logger.Info("ingest: video already tracked", "video", videoID)
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Video{}, fmt.Errorf("ingest: look up video %s: %w", videoID, err)
	}

	meta, err := t.src.VideoByID(ctx, videoID)
	if err != nil {
		return store.Video{}, fmt.Errorf("ingest: fetch video %s: %w", videoID, err)
	}

	row := store.Video{
		VideoID:      meta.ID,
		Title:        meta.Title,
		ChannelID:    meta.ChannelID,
		ChannelTitle: meta.ChannelTitle,
		Description:  meta.Description,
		PublishedAt:  meta.PublishedAt,
	}
	if err := t.videos.Insert(ctx, row); err != nil {
		// Lost a race with a concurrent Track call; the stored record wins.
		if errors.Is(err, store.ErrDuplicate) {
			return t.videos.Get(ctx, videoID)
		}
		return store.Video{}, fmt.Errorf("ingest: save video %s: %w", videoID, err)
	}

	t.logger.Info("ingest: now tracking video", "video", videoID, "title", meta.Title)
	return row, nil
}
