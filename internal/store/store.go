// Package store defines the persistence interfaces and entity types shared
// by the ingestion pipeline, the chat service, and the HTTP gateway.
// Concrete backends live in separate packages (e.g. store.sqlite) and
// typically also implement core.Module for lifecycle management.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate indicates an insert collided with an existing unique key.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Video is an external video tracked for comment polling. Metadata is a
// snapshot taken at tracking time; only LastCheckedAt changes afterwards.
type Video struct {
	VideoID       string
	Title         string
	ChannelID     string
	ChannelTitle  string
	Description   string
	PublishedAt   time.Time
	LastCheckedAt time.Time
	CreatedAt     time.Time
}

// CommentStatus tracks how far a comment has progressed through the pipeline.
type CommentStatus string

// Comment statuses.
const (
	StatusPending CommentStatus = "pending"
	StatusReplied CommentStatus = "replied"
)

// Comment is a single ingested comment. CommentID is the source system's
// stable identifier and the dedup key: at most one row exists per CommentID,
// ever. Text and author fields are captured verbatim at ingestion time and
// never rewritten; only the reply fields and status change afterwards.
type Comment struct {
	CommentID       string
	VideoID         string
	Text            string
	AuthorName      string
	AuthorChannelID string
	Status          CommentStatus
	ReplyText       string
	RepliedAt       time.Time
	CreatedAt       time.Time
}

// Setting is a single persisted configuration value. Keys are scoped by job
// name using a "<job>_<name>" prefix scheme; values are opaque JSON.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Conversation groups the chat exchanges that drive a job out-of-band.
type Conversation struct {
	ID           string
	Job          string
	Title        string
	Status       string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Draft is a generated piece of content awaiting review or posting.
type Draft struct {
	ID        int64
	Content   string
	Status    string
	CreatedAt time.Time
	PostedAt  time.Time
}

// Draft statuses.
const (
	DraftStatusDraft  = "draft"
	DraftStatusPosted = "posted"
)

// VideoStore persists tracked videos.
type VideoStore interface {
	// Insert adds a new tracked video. Returns ErrDuplicate if the
	// video ID is already tracked.
	Insert(ctx context.Context, v Video) error

	// Get returns the video with the given ID, or ErrNotFound.
	Get(ctx context.Context, videoID string) (Video, error)

	// List returns all tracked videos, oldest first.
	List(ctx context.Context) ([]Video, error)

	// TouchLastChecked records a completed ingestion pass over the video.
	TouchLastChecked(ctx context.Context, videoID string, at time.Time) error
}

// CommentStore persists ingested comments and is the dedup source of truth.
type CommentStore interface {
	// Insert adds a new comment with status pending. Returns ErrDuplicate
	// if a comment with the same CommentID already exists — the caller
	// treats that as "already processed", not as a failure.
	Insert(ctx context.Context, c Comment) error

	// Get returns the comment with the given ID, or ErrNotFound.
	Get(ctx context.Context, commentID string) (Comment, error)

	// Seen reports whether the comment ID has already been ingested.
	Seen(ctx context.Context, commentID string) (bool, error)

	// MarkReplied transitions a comment to replied with the reply text.
	MarkReplied(ctx context.Context, commentID, replyText string, at time.Time) error

	// ListByVideo returns all comments for a video, newest first.
	ListByVideo(ctx context.Context, videoID string) ([]Comment, error)

	// Count returns the total number of stored comments.
	Count(ctx context.Context) (int, error)
}

// SettingStore persists job-scoped configuration values.
type SettingStore interface {
	// Upsert writes a value, replacing any existing value for the key.
	Upsert(ctx context.Context, key, value string) error

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Setting, error)

	// ListByPrefix returns all settings whose key starts with prefix.
	ListByPrefix(ctx context.Context, prefix string) ([]Setting, error)
}

// ConversationStore persists chat conversations and their messages.
type ConversationStore interface {
	// CreateConversation inserts a new conversation record.
	CreateConversation(ctx context.Context, c Conversation) error

	// GetConversation returns a conversation by ID, or ErrNotFound.
	GetConversation(ctx context.Context, id string) (Conversation, error)

	// UpdateConversation rewrites title, status, message count and
	// updated-at for an existing conversation.
	UpdateConversation(ctx context.Context, c Conversation) error

	// AppendMessage adds one turn to a conversation.
	AppendMessage(ctx context.Context, m Message) error

	// RecentMessages returns up to limit messages for the conversation,
	// oldest first, taken from the most recent end of the transcript.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// DraftStore persists generated content drafts.
type DraftStore interface {
	// InsertDraft saves new content with status draft and returns its ID.
	InsertDraft(ctx context.Context, content string) (int64, error)

	// ListDrafts returns all drafts, newest first.
	ListDrafts(ctx context.Context) ([]Draft, error)
}
