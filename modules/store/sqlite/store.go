package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/replyloop/replyloop/internal/store"
)

// formatTime serializes a timestamp, mapping the zero time to ''.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserializes a timestamp, mapping '' to the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- videos ---

type videoStore struct {
	db *sql.DB
}

func (s *videoStore) Insert(ctx context.Context, v store.Video) error {
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (video_id, title, channel_id, channel_title, description, published_at, last_checked_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO NOTHING`,
		v.VideoID, v.Title, v.ChannelID, v.ChannelTitle, v.Description,
		formatTime(v.PublishedAt), formatTime(v.LastCheckedAt), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: insert video: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: video %s: %w", v.VideoID, store.ErrDuplicate)
	}
	return nil
}

func (s *videoStore) Get(ctx context.Context, videoID string) (store.Video, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT video_id, title, channel_id, channel_title, description, published_at, last_checked_at, created_at
		FROM videos WHERE video_id = ?`, videoID)
	return scanVideo(row)
}

func (s *videoStore) List(ctx context.Context) ([]store.Video, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, title, channel_id, channel_title, description, published_at, last_checked_at, created_at
		FROM videos ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var videos []store.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *videoStore) TouchLastChecked(ctx context.Context, videoID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE videos SET last_checked_at = ? WHERE video_id = ?",
		formatTime(at), videoID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touch video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: touch video: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: video %s: %w", videoID, store.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (store.Video, error) {
	var v store.Video
	var publishedAt, lastCheckedAt, createdAt string
	err := row.Scan(&v.VideoID, &v.Title, &v.ChannelID, &v.ChannelTitle, &v.Description,
		&publishedAt, &lastCheckedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Video{}, store.ErrNotFound
	}
	if err != nil {
		return store.Video{}, fmt.Errorf("sqlite: scan video: %w", err)
	}
	v.PublishedAt = parseTime(publishedAt)
	v.LastCheckedAt = parseTime(lastCheckedAt)
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

// --- comments ---

type commentStore struct {
	db *sql.DB
}

func (s *commentStore) Insert(ctx context.Context, c store.Comment) error {
	status := c.Status
	if status == "" {
		status = store.StatusPending
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (comment_id, video_id, text, author_name, author_channel_id, status, reply_text, replied_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(comment_id) DO NOTHING`,
		c.CommentID, c.VideoID, c.Text, c.AuthorName, c.AuthorChannelID,
		string(status), c.ReplyText, formatTime(c.RepliedAt), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: insert comment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: comment %s: %w", c.CommentID, store.ErrDuplicate)
	}
	return nil
}

func (s *commentStore) Get(ctx context.Context, commentID string) (store.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT comment_id, video_id, text, author_name, author_channel_id, status, reply_text, replied_at, created_at
		FROM comments WHERE comment_id = ?`, commentID)
	return scanComment(row)
}

func (s *commentStore) Seen(ctx context.Context, commentID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM comments WHERE comment_id = ?", commentID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: check comment: %w", err)
	}
	return n > 0, nil
}

func (s *commentStore) MarkReplied(ctx context.Context, commentID, replyText string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE comments SET status = ?, reply_text = ?, replied_at = ?
		WHERE comment_id = ?`,
		string(store.StatusReplied), replyText, formatTime(at), commentID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: mark replied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: mark replied: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: comment %s: %w", commentID, store.ErrNotFound)
	}
	return nil
}

func (s *commentStore) ListByVideo(ctx context.Context, videoID string) ([]store.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT comment_id, video_id, text, author_name, author_channel_id, status, reply_text, replied_at, created_at
		FROM comments WHERE video_id = ? ORDER BY created_at DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []store.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *commentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM comments").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count comments: %w", err)
	}
	return n, nil
}

func scanComment(row rowScanner) (store.Comment, error) {
	var c store.Comment
	var status, repliedAt, createdAt string
	err := row.Scan(&c.CommentID, &c.VideoID, &c.Text, &c.AuthorName, &c.AuthorChannelID,
		&status, &c.ReplyText, &repliedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Comment{}, store.ErrNotFound
	}
	if err != nil {
		return store.Comment{}, fmt.Errorf("sqlite: scan comment: %w", err)
	}
	c.Status = store.CommentStatus(status)
	c.RepliedAt = parseTime(repliedAt)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// --- settings ---

type settingStore struct {
	db *sql.DB
}

func (s *settingStore) Upsert(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert setting: %w", err)
	}
	return nil
}

func (s *settingStore) Get(ctx context.Context, key string) (store.Setting, error) {
	var setting store.Setting
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT key, value, updated_at FROM settings WHERE key = ?", key,
	).Scan(&setting.Key, &setting.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Setting{}, store.ErrNotFound
	}
	if err != nil {
		return store.Setting{}, fmt.Errorf("sqlite: get setting: %w", err)
	}
	setting.UpdatedAt = parseTime(updatedAt)
	return setting, nil
}

func (s *settingStore) ListByPrefix(ctx context.Context, prefix string) ([]store.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at FROM settings
		WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var settings []store.Setting
	for rows.Next() {
		var setting store.Setting
		var updatedAt string
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan setting: %w", err)
		}
		setting.UpdatedAt = parseTime(updatedAt)
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// --- conversations ---

type conversationStore struct {
	db *sql.DB
}

func (s *conversationStore) CreateConversation(ctx context.Context, c store.Conversation) error {
	now := time.Now().UTC()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, job, title, status, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Job, c.Title, c.Status, c.MessageCount,
		formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create conversation: %w", err)
	}
	return nil
}

func (s *conversationStore) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	var c store.Conversation
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job, title, status, message_count, created_at, updated_at
		FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Job, &c.Title, &c.Status, &c.MessageCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Conversation{}, store.ErrNotFound
	}
	if err != nil {
		return store.Conversation{}, fmt.Errorf("sqlite: get conversation: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func (s *conversationStore) UpdateConversation(ctx context.Context, c store.Conversation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET title = ?, status = ?, message_count = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.Status, c.MessageCount, formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update conversation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: conversation %s: %w", c.ID, store.ErrNotFound)
	}
	return nil
}

func (s *conversationStore) AppendMessage(ctx context.Context, m store.Message) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return nil
}

func (s *conversationStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Take the window from the recent end, then flip to chronological order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at, rowid
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at, rowid`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []store.Message
	for rows.Next() {
		var m store.Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// --- drafts ---

type draftStore struct {
	db *sql.DB
}

func (s *draftStore) InsertDraft(ctx context.Context, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO drafts (content, status, created_at) VALUES (?, ?, ?)",
		content, store.DraftStatusDraft, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert draft: %w", err)
	}
	return id, nil
}

func (s *draftStore) ListDrafts(ctx context.Context) ([]store.Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, status, created_at, posted_at FROM drafts ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drafts []store.Draft
	for rows.Next() {
		var d store.Draft
		var createdAt, postedAt string
		if err := rows.Scan(&d.ID, &d.Content, &d.Status, &createdAt, &postedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan draft: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		d.PostedAt = parseTime(postedAt)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
