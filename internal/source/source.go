// Package source defines the interface for external comment platforms.
// Concrete implementations live under modules/source and also implement
// core.Module for lifecycle management.
package source

import (
	"context"
	"time"
)

// Video is platform metadata for a tracked video.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Description  string    `json:"description"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	CommentCount int64     `json:"comment_count"`
}

// Comment is one top-level comment on a video.
type Comment struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"video_id"`
	Author      string    `json:"author"`
	AuthorID    string    `json:"author_id"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	PublishedAt time.Time `json:"published_at"`
}

// CommentSource fetches video metadata and comment pages from an external
// platform, and posts replies where credentials allow it.
type CommentSource interface {
	// VideoByID returns metadata for a single video.
	VideoByID(ctx context.Context, videoID string) (Video, error)

	// Comments returns up to max top-level comments for the video,
	// newest first.
	Comments(ctx context.Context, videoID string, max int) ([]Comment, error)

	// Reply posts a reply to the given comment. Requires write
	// credentials; returns ErrNotConfigured without them.
	Reply(ctx context.Context, commentID, text string) error
}
